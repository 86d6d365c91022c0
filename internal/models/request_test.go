package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHigherStudiesType(t *testing.T) {
	cases := map[string]HigherStudiesType{
		"Foreign Universities": HigherStudiesForeign,
		"GATE":                 HigherStudiesGATE,
		"Gate Exam":            HigherStudiesGATE,
		" gate ":               HigherStudiesGATE,
	}
	for raw, want := range cases {
		got, ok := ParseHigherStudiesType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseHigherStudiesType("CAT")
	assert.False(t, ok)
}

func TestParseStatusFilter(t *testing.T) {
	status, ok := ParseStatusFilter("")
	assert.True(t, ok)
	assert.Empty(t, status)

	status, ok = ParseStatusFilter("All")
	assert.True(t, ok)
	assert.Empty(t, status)

	status, ok = ParseStatusFilter("Pending")
	assert.True(t, ok)
	assert.Equal(t, RequestStatusPending, status)

	_, ok = ParseStatusFilter("archived")
	assert.False(t, ok)
}

func TestFlatCareerRoundTrip(t *testing.T) {
	employed := Employed{CompanyName: "Acme", Package: "12 LPA", City: "Pune"}
	flat := Flatten(employed)
	assert.True(t, flat.Placed)
	assert.Empty(t, flat.FuturePlans)
	assert.Nil(t, flat.HigherStudiesDetails)
	outcome, err := flat.Outcome()
	require.NoError(t, err)
	assert.Equal(t, employed, outcome)

	seeking := Seeking{Plan: FuturePlanHigherStudies, HigherStudies: &HigherStudiesDetails{Exam: HigherStudiesGATE}}
	flat = Flatten(seeking)
	assert.False(t, flat.Placed)
	assert.Nil(t, flat.PlacementDetails)
	require.NotNil(t, flat.HigherStudiesDetails)
	outcome, err = flat.Outcome()
	require.NoError(t, err)
	assert.Equal(t, seeking, outcome)
}

func TestFlatCareerRejectsIllegalShapes(t *testing.T) {
	cases := []FlatCareer{
		{Placed: true},
		{Placed: true, PlacementDetails: &Employed{}, FuturePlans: FuturePlanStartup},
		{Placed: false},
		{Placed: false, PlacementDetails: &Employed{}, FuturePlans: FuturePlanStartup},
		{FuturePlans: FuturePlanHigherStudies},
		{FuturePlans: FuturePlanStartup, HigherStudiesDetails: &HigherStudiesDetails{Exam: HigherStudiesGATE}},
	}
	for i, flat := range cases {
		_, err := flat.Outcome()
		assert.ErrorIs(t, err, ErrInvalidCareer, "case %d", i)
	}
}

func TestRequestJSONShape(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	req := Request{
		ID:     "req-1",
		UserID: "user-1",
		Name:   "Asha Verma",
		Branch: BranchCSE,
		RollNo: "18103021",
		Career: Seeking{
			Plan: FuturePlanHigherStudies,
			HigherStudies: &HigherStudiesDetails{
				Exam:       HigherStudiesForeign,
				Country:    "USA",
				Course:     "MS CS",
				University: "XYZ",
			},
		},
		Ratings:       Ratings{}.WithDefaults(),
		Status:        RequestStatusPending,
		AssignedAdmin: "admin-1",
		Owner:         &Owner{ID: "user-1", Name: "Asha Verma", Email: "asha@example.com"},
		CreatedAt:     created,
		UpdatedAt:     created,
	}

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, false, generic["placed"])
	assert.NotContains(t, generic, "placementDetails")
	assert.Equal(t, "Higher Studies", generic["futurePlans"])
	assert.Equal(t, map[string]interface{}{
		"exam":       "Foreign Universities",
		"country":    "USA",
		"course":     "MS CS",
		"university": "XYZ",
	}, generic["higherStudiesDetails"])
	assert.Equal(t, "Good", generic["overallRating"])
	assert.Equal(t, "asha@example.com", generic["submittedBy"].(map[string]interface{})["email"])

	var decoded Request
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, req, decoded)
}

func TestRequestUnmarshalRejectsBothOutcomes(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{"placed":true,"placementDetails":{"companyName":"Acme"},"futurePlans":"Startup"}`), &req)
	assert.ErrorIs(t, err, ErrInvalidCareer)
}

func TestNewRequestDetail(t *testing.T) {
	req := &Request{
		ID:                 "req-1",
		Name:               "Asha Verma",
		Branch:             BranchECE,
		MobileNo:           "9876543210",
		Email:              "asha@example.com",
		CurrentDesignation: "SDE",
		Career:             Employed{CompanyName: "Acme", Package: "12 LPA", City: "Pune"},
		Ratings:            Ratings{Faculty: RatingExcellent}.WithDefaults(),
		Status:             RequestStatusApproved,
	}

	detail := NewRequestDetail(req)
	assert.Equal(t, "9876543210", detail.PersonalInfo.Contact.MobileNo)
	assert.True(t, detail.Career.Placed)
	assert.Equal(t, "Acme", detail.Career.Details.CompanyName)
	assert.Empty(t, detail.Future.Plans)
	assert.Equal(t, RatingExcellent, detail.Feedback.Ratings.Faculty)
	assert.Equal(t, RatingGood, detail.Feedback.Ratings.Hostel)
	assert.Equal(t, "Placed", req.PlacementLabel())
}
