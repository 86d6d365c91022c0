// Package form drives the three-step certificate request form: step
// navigation, per-field checks, conditional fields and submission.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nitj-alumni/alumni-erp-api/internal/client"
	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/validation"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
)

// Step is a page of the form.
type Step int

const (
	StepPersonal Step = iota + 1
	StepCareer
	StepFeedback
)

// FirstStep and LastStep bound the navigation.
const (
	FirstStep = StepPersonal
	LastStep  = StepFeedback
)

func (s Step) String() string {
	switch s {
	case StepPersonal:
		return "Personal Information"
	case StepCareer:
		return "Placement / Future Plans"
	case StepFeedback:
		return "Feedback"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Confirmation is shown after a successful submission.
const Confirmation = "Certificate request and feedback submitted successfully!"

// Select options offered by the form.
var (
	PlacedOptions        = []string{dto.PlacedYes, dto.PlacedNo}
	FuturePlanOptions    = []string{string(models.FuturePlanHigherStudies), string(models.FuturePlanOffCampusPrep), string(models.FuturePlanStartup)}
	HigherStudiesOptions = []string{string(models.HigherStudiesForeign), "Gate Exam"}
)

var (
	// ErrUnknownField is returned by Get and Set for names the form does not carry.
	ErrUnknownField = errors.New("unknown form field")
	// ErrSubmitting is returned while a submission is in flight.
	ErrSubmitting = errors.New("submission already in progress")
)

// Submitter sends the aggregated payload. *client.Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, payload dto.SubmitRequest) (*client.SubmitResponse, error)
}

// Form holds the entered values and the current step. It is meant to be
// driven by a single goroutine.
type Form struct {
	step       Step
	values     dto.SubmitRequest
	text       map[string]*string
	ratings    map[string]*models.Rating
	validate   *validator.Validate
	submitting bool
	errText    string
}

// New returns an empty form on the first step with placed "no" and every
// rating at its default.
func New() *Form {
	f := &Form{step: FirstStep, validate: validation.New()}
	f.values.Placed = dto.PlacedNo
	f.values.Ratings = models.Ratings{}.WithDefaults()

	v := &f.values
	f.text = map[string]*string{
		"name":               &v.Name,
		"branch":             &v.Branch,
		"rollNo":             &v.RollNo,
		"batchYear":          &v.BatchYear,
		"mobileNo":           &v.MobileNo,
		"alternativeNo":      &v.AlternativeNo,
		"email":              &v.Email,
		"alternativeEmail":   &v.AlternativeEmail,
		"address":            &v.Address,
		"placed":             &v.Placed,
		"currentDesignation": &v.CurrentDesignation,
		"companyName":        &v.CompanyName,
		"package":            &v.Package,
		"city":               &v.City,
		"futurePlans":        &v.FuturePlans,
		"higherStudiesType":  &v.HigherStudiesType,
		"foreignCountry":     &v.ForeignCountry,
		"course":             &v.Course,
		"university":         &v.University,
		"opinionAboutNITJ":   &v.OpinionAboutNITJ,
		"proudPoints":        &v.ProudPoints,
		"courseRelevance":    &v.CourseRelevance,
	}
	f.ratings = v.Ratings.Fields()
	return f
}

// Prefill copies the signed-in user's identity into the personal step.
func (f *Form) Prefill(p models.Profile) {
	f.values.Name = p.Name
	f.values.Email = p.Email
	f.values.Branch = string(p.Branch)
	f.values.RollNo = p.RollNo
}

// Get returns the current value of field.
func (f *Form) Get(field string) (string, error) {
	if p, ok := f.text[field]; ok {
		return *p, nil
	}
	if r, ok := f.ratings[field]; ok {
		return string(*r), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// Set stores value as typed; checks run separately and never reject input.
func (f *Form) Set(field, value string) error {
	if p, ok := f.text[field]; ok {
		*p = value
		return nil
	}
	if r, ok := f.ratings[field]; ok {
		*r = models.Rating(value)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// Step returns the current step.
func (f *Form) Step() Step { return f.step }

// CanGoBack reports whether Back is enabled.
func (f *Form) CanGoBack() bool { return f.step > FirstStep }

// ShowNext reports whether Next is offered; the last step shows Submit instead.
func (f *Form) ShowNext() bool { return f.step < LastStep }

// ShowSubmit reports whether Submit is offered.
func (f *Form) ShowSubmit() bool { return f.step == LastStep }

// CanAdvance reports whether the current step's visible required fields are filled.
func (f *Form) CanAdvance() bool {
	return f.ShowNext() && len(f.Missing(f.step)) == 0
}

// Next moves forward one step. It fails with the missing fields when the
// current step is incomplete.
func (f *Form) Next() error {
	if !f.ShowNext() {
		return appErrors.Clone(appErrors.ErrValidation, "already on the last step")
	}
	if missing := f.Missing(f.step); len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "please fill "+strings.Join(missing, ", "))
	}
	f.step++
	return nil
}

// Back moves to the previous step and reports whether it moved.
func (f *Form) Back() bool {
	if !f.CanGoBack() {
		return false
	}
	f.step--
	return true
}

// Visible reports whether field is currently rendered.
func (f *Form) Visible(field string) bool {
	v := f.values
	switch field {
	case "companyName", "package", "city":
		return v.Placed == dto.PlacedYes
	case "futurePlans":
		return v.Placed == dto.PlacedNo
	case "higherStudiesType":
		return v.Placed == dto.PlacedNo && v.FuturePlans == string(models.FuturePlanHigherStudies)
	case "foreignCountry", "course", "university":
		return v.Placed == dto.PlacedNo && v.FuturePlans == string(models.FuturePlanHigherStudies) &&
			v.HigherStudiesType == string(models.HigherStudiesForeign)
	}
	_, text := f.text[field]
	_, rating := f.ratings[field]
	return text || rating
}

// Required lists the visible required fields of step.
func (f *Form) Required(step Step) []string {
	switch step {
	case StepPersonal:
		return []string{"name", "rollNo", "branch", "batchYear", "mobileNo", "email"}
	case StepCareer:
		fields := []string{"placed"}
		for _, name := range []string{"companyName", "package", "city", "futurePlans", "higherStudiesType", "foreignCountry", "course", "university"} {
			if f.Visible(name) {
				fields = append(fields, name)
			}
		}
		return fields
	default:
		return nil
	}
}

// Missing lists the required fields of step that are blank.
func (f *Form) Missing(step Step) []string {
	var missing []string
	for _, name := range f.Required(step) {
		if strings.TrimSpace(*f.text[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// FieldError returns the inline message for field, or "" when the value is
// empty or well formed.
func (f *Form) FieldError(field string) string {
	value, err := f.Get(field)
	if err != nil || value == "" {
		return ""
	}
	switch field {
	case "mobileNo", "alternativeNo":
		if !validation.Phone(value) {
			return "Please enter a valid 10-digit mobile number"
		}
	case "email", "alternativeEmail":
		if !validation.Email(value) {
			return "Please enter a valid email address"
		}
	}
	return ""
}

// Error returns the text of the last failed submission, or "".
func (f *Form) Error() string { return f.errText }

// Submitting reports whether a submission is in flight.
func (f *Form) Submitting() bool { return f.submitting }

// Payload returns the aggregated values with hidden fields cleared.
func (f *Form) Payload() dto.SubmitRequest {
	payload := f.values
	for name, p := range map[string]*string{
		"companyName":       &payload.CompanyName,
		"package":           &payload.Package,
		"city":              &payload.City,
		"futurePlans":       &payload.FuturePlans,
		"higherStudiesType": &payload.HigherStudiesType,
		"foreignCountry":    &payload.ForeignCountry,
		"course":            &payload.Course,
		"university":        &payload.University,
	} {
		if !f.Visible(name) {
			*p = ""
		}
	}
	payload.Normalize()
	return payload
}

// Validate runs every check the server would, without a network call.
func (f *Form) Validate() error {
	var errs validation.Errors
	for step := FirstStep; step <= LastStep; step++ {
		for _, name := range f.Missing(step) {
			errs = append(errs, validation.FieldError{Field: name, Message: name + " is required"})
		}
	}
	for _, name := range []string{"mobileNo", "alternativeNo", "email", "alternativeEmail"} {
		if msg := f.FieldError(name); msg != "" {
			errs = append(errs, validation.FieldError{Field: name, Message: msg})
		}
	}
	if len(errs) == 0 {
		payload := f.Payload()
		if err := validation.Submission(f.validate, &payload); err != nil {
			if !errors.As(err, &errs) {
				return err
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return appErrors.Wrap(errs, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
}

// Submit validates locally and sends the form once. On failure the entered
// values and step are kept and Error exposes the message; on success the
// confirmation text is returned.
func (f *Form) Submit(ctx context.Context, submitter Submitter) (string, error) {
	if f.submitting {
		return "", ErrSubmitting
	}
	if err := f.Validate(); err != nil {
		f.errText = err.Error()
		return "", err
	}

	f.submitting = true
	defer func() { f.submitting = false }()

	if _, err := submitter.Submit(ctx, f.Payload()); err != nil {
		f.errText = errorText(err)
		return "", err
	}
	f.errText = ""
	return Confirmation, nil
}

func errorText(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return "Failed to submit request: " + err.Error()
}
