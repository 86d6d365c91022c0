package form

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitj-alumni/alumni-erp-api/internal/client"
	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/validation"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
)

type recordingSubmitter struct {
	calls   []dto.SubmitRequest
	failure error
}

func (s *recordingSubmitter) Submit(_ context.Context, payload dto.SubmitRequest) (*client.SubmitResponse, error) {
	s.calls = append(s.calls, payload)
	if s.failure != nil {
		return nil, s.failure
	}
	return &client.SubmitResponse{Message: "Request and feedback submitted successfully", Result: dto.SubmitResult{RequestID: "r1"}}, nil
}

func set(t *testing.T, f *Form, values map[string]string) {
	t.Helper()
	for k, v := range values {
		require.NoError(t, f.Set(k, v))
	}
}

func filledForm(t *testing.T) *Form {
	t.Helper()
	f := New()
	f.Prefill(models.Profile{Name: "Asha Verma", Email: "asha@example.com", Branch: models.BranchCSE, RollNo: "18103021"})
	set(t, f, map[string]string{"batchYear": "2022", "mobileNo": "9876543210", "placed": "yes", "companyName": "Acme", "package": "12 LPA", "city": "Pune"})
	return f
}

func TestNewFormDefaults(t *testing.T) {
	f := New()
	assert.Equal(t, StepPersonal, f.Step())
	assert.Equal(t, "Personal Information", f.Step().String())
	assert.False(t, f.CanGoBack())
	assert.True(t, f.ShowNext())
	assert.False(t, f.ShowSubmit())

	placed, _ := f.Get("placed")
	assert.Equal(t, dto.PlacedNo, placed)
	overall, _ := f.Get("overallRating")
	assert.Equal(t, string(models.RatingGood), overall)

	_, err := f.Get("favouriteColour")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.ErrorIs(t, f.Set("favouriteColour", "blue"), ErrUnknownField)
}

func TestStepNavigationGatesOnRequiredFields(t *testing.T) {
	f := New()
	f.Prefill(models.Profile{Name: "Asha", Email: "asha@example.com", Branch: models.BranchCSE, RollNo: "1"})

	assert.Equal(t, []string{"batchYear", "mobileNo"}, f.Missing(StepPersonal))
	assert.False(t, f.CanAdvance())
	err := f.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "batchYear, mobileNo")
	assert.Equal(t, StepPersonal, f.Step())

	// Format is not checked when moving between steps.
	set(t, f, map[string]string{"batchYear": "2022", "mobileNo": "123"})
	require.NoError(t, f.Next())
	assert.Equal(t, StepCareer, f.Step())
	assert.True(t, f.CanGoBack())

	assert.Equal(t, []string{"futurePlans"}, f.Missing(StepCareer))
	require.NoError(t, f.Set("futurePlans", "Startup"))
	require.NoError(t, f.Next())

	assert.Equal(t, StepFeedback, f.Step())
	assert.False(t, f.ShowNext())
	assert.True(t, f.ShowSubmit())
	assert.Error(t, f.Next())

	assert.True(t, f.Back())
	assert.True(t, f.Back())
	assert.False(t, f.Back())
	assert.Equal(t, StepPersonal, f.Step())
}

func TestConditionalVisibility(t *testing.T) {
	f := New()
	assert.True(t, f.Visible("futurePlans"))
	assert.False(t, f.Visible("companyName"))
	assert.False(t, f.Visible("higherStudiesType"))
	assert.True(t, f.Visible("currentDesignation"))
	assert.True(t, f.Visible("hostelRating"))
	assert.False(t, f.Visible("nope"))

	require.NoError(t, f.Set("futurePlans", string(models.FuturePlanHigherStudies)))
	assert.True(t, f.Visible("higherStudiesType"))
	assert.False(t, f.Visible("university"))
	assert.Equal(t, []string{"placed", "futurePlans", "higherStudiesType"}, f.Required(StepCareer))

	require.NoError(t, f.Set("higherStudiesType", "Foreign Universities"))
	assert.True(t, f.Visible("foreignCountry"))
	assert.Equal(t, []string{"foreignCountry", "course", "university"}, f.Missing(StepCareer))

	require.NoError(t, f.Set("placed", "yes"))
	assert.False(t, f.Visible("futurePlans"))
	assert.False(t, f.Visible("foreignCountry"))
	assert.Equal(t, []string{"placed", "companyName", "package", "city"}, f.Required(StepCareer))
	assert.Empty(t, f.Required(StepFeedback))
}

func TestFieldErrors(t *testing.T) {
	f := New()
	assert.Empty(t, f.FieldError("alternativeNo"))
	assert.Empty(t, f.FieldError("alternativeEmail"))

	set(t, f, map[string]string{"mobileNo": "98765", "alternativeNo": "9876543210", "email": "asha@", "alternativeEmail": "a@b.in"})
	assert.Equal(t, "Please enter a valid 10-digit mobile number", f.FieldError("mobileNo"))
	assert.Empty(t, f.FieldError("alternativeNo"))
	assert.Equal(t, "Please enter a valid email address", f.FieldError("email"))
	assert.Empty(t, f.FieldError("alternativeEmail"))
	assert.Empty(t, f.FieldError("name"))
}

func TestSubmitRejectsLocallyWithoutNetwork(t *testing.T) {
	f := filledForm(t)
	require.NoError(t, f.Set("mobileNo", "12345"))
	require.NoError(t, f.Set("city", ""))
	sub := &recordingSubmitter{}

	_, err := f.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	var errs validation.Errors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, "city is required", errs.Field("city"))
	assert.NotEmpty(t, errs.Field("mobileNo"))
	assert.Empty(t, sub.calls)
	assert.NotEmpty(t, f.Error())
}

func TestSubmitSendsVisibleFieldsOnly(t *testing.T) {
	f := filledForm(t)
	set(t, f, map[string]string{"futurePlans": "Startup", "name": "  Asha Verma  "})
	sub := &recordingSubmitter{}

	msg, err := f.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, Confirmation, msg)
	require.Len(t, sub.calls, 1)

	sent := sub.calls[0]
	assert.Equal(t, "Asha Verma", sent.Name)
	assert.Equal(t, "Acme", sent.CompanyName)
	assert.Empty(t, sent.FuturePlans)
	assert.Equal(t, models.RatingGood, sent.Ratings.Canteen)
	assert.Empty(t, f.Error())
	assert.False(t, f.Submitting())
}

func TestSubmitFailureKeepsState(t *testing.T) {
	f := filledForm(t)
	require.NoError(t, f.Next())
	require.NoError(t, f.Next())
	sub := &recordingSubmitter{failure: &client.APIError{Status: http.StatusNotFound, Code: "DUPLICATE_PENDING", Message: "you have already filled the form"}}

	_, err := f.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, "you have already filled the form", f.Error())
	assert.Equal(t, StepFeedback, f.Step())
	company, _ := f.Get("companyName")
	assert.Equal(t, "Acme", company)

	sub.failure = errors.New("connection refused")
	_, err = f.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, "Failed to submit request: connection refused", f.Error())

	sub.failure = nil
	_, err = f.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Len(t, sub.calls, 3)
}

func TestGateExamAccepted(t *testing.T) {
	f := filledForm(t)
	set(t, f, map[string]string{"placed": "no", "futurePlans": "Higher Studies", "higherStudiesType": "Gate Exam"})
	assert.Empty(t, f.Missing(StepCareer))
	assert.NoError(t, f.Validate())
	assert.Contains(t, HigherStudiesOptions, "Gate Exam")
}
