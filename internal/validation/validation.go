package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
)

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Phone reports whether s is exactly ten digits.
func Phone(s string) bool {
	return phonePattern.MatchString(s)
}

// Email reports whether s has the local@domain.tld shape.
func Email(s string) bool {
	return emailPattern.MatchString(s)
}

// FieldError is a validation failure on one payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects field failures in payload order.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Field returns the message for field, or "".
func (e Errors) Field(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

func (e *Errors) add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// New returns a validator with the request vocabulary registered and json
// field names reported in errors.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return Phone(fl.Field().String())
	})
	mustRegister(v, "alumni_email", func(fl validator.FieldLevel) bool {
		return Email(fl.Field().String())
	})
	mustRegister(v, "branch", func(fl validator.FieldLevel) bool {
		return models.Branch(fl.Field().String()).Valid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Submission validates a normalised payload: struct tags first, then the
// rules that depend on other fields. It returns nil or an Errors value.
func Submission(v *validator.Validate, req *dto.SubmitRequest) error {
	var errs Errors
	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs.add(fe.Field(), message(fe))
		}
	}

	if req.Placed == dto.PlacedNo {
		switch plan := models.FuturePlan(req.FuturePlans); {
		case req.FuturePlans == "":
			errs.add("futurePlans", "futurePlans is required when placed is no")
		case !plan.Valid():
			errs.add("futurePlans", "futurePlans must be one of "+join(models.FuturePlans))
		case plan == models.FuturePlanHigherStudies:
			checkHigherStudies(req, &errs)
		}
	}

	ratings := req.Ratings
	for _, name := range ratingOrder {
		if r := *ratings.Fields()[name]; r != "" && !r.Valid() {
			errs.add(name, name+" must be one of "+join(models.RatingScale))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

var ratingOrder = []string{
	"facultyRating", "infrastructureRating", "libraryRating", "educationalResourcesRating",
	"canteenRating", "hostelRating", "grievanceHandlingRating", "overallRating",
}

func checkHigherStudies(req *dto.SubmitRequest, errs *Errors) {
	if req.HigherStudiesType == "" {
		errs.add("higherStudiesType", "higherStudiesType is required for Higher Studies")
		return
	}
	kind, ok := models.ParseHigherStudiesType(req.HigherStudiesType)
	if !ok {
		errs.add("higherStudiesType", "higherStudiesType must be Foreign Universities or GATE")
		return
	}
	if kind != models.HigherStudiesForeign {
		return
	}
	for _, f := range []struct{ name, value string }{
		{"foreignCountry", req.ForeignCountry},
		{"course", req.Course},
		{"university", req.University},
	} {
		if f.value == "" {
			errs.add(f.name, f.name+" is required for Foreign Universities")
		}
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "required_if":
		return fe.Field() + " is required when " + strings.Replace(lowerFirst(fe.Param()), " ", " is ", 1)
	case "phone":
		return fe.Field() + " must be exactly 10 digits"
	case "alumni_email", "email":
		return fe.Field() + " must be a valid email address"
	case "branch":
		return fe.Field() + " must be one of " + join(models.Branches)
	case "oneof":
		return fe.Field() + " must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// Message renders any error returned by a validator as a single line.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = message(fe)
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func join[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
