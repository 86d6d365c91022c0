package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Branch is the academic department a request is routed by.
type Branch string

const (
	BranchCSE Branch = "CSE"
	BranchECE Branch = "ECE"
	BranchEE  Branch = "EE"
	BranchME  Branch = "ME"
	BranchCE  Branch = "CE"
	BranchBT  Branch = "BT"
	BranchICE Branch = "ICE"
	BranchIPE Branch = "IPE"
	BranchTT  Branch = "TT"
	BranchCHE Branch = "CHE"
)

// Branches lists every branch in display order.
var Branches = []Branch{BranchCSE, BranchECE, BranchEE, BranchME, BranchCE, BranchBT, BranchICE, BranchIPE, BranchTT, BranchCHE}

// Valid reports whether b is a known branch.
func (b Branch) Valid() bool {
	for _, known := range Branches {
		if b == known {
			return true
		}
	}
	return false
}

// FuturePlan is the plan category of an alumnus who is not placed.
type FuturePlan string

const (
	FuturePlanHigherStudies FuturePlan = "Higher Studies"
	FuturePlanOffCampusPrep FuturePlan = "Off Campus Prep"
	FuturePlanStartup       FuturePlan = "Startup"
)

// FuturePlans lists every plan in display order.
var FuturePlans = []FuturePlan{FuturePlanHigherStudies, FuturePlanOffCampusPrep, FuturePlanStartup}

// Valid reports whether p is a known plan.
func (p FuturePlan) Valid() bool {
	return p == FuturePlanHigherStudies || p == FuturePlanOffCampusPrep || p == FuturePlanStartup
}

// HigherStudiesType is the exam category for higher studies.
type HigherStudiesType string

const (
	HigherStudiesForeign HigherStudiesType = "Foreign Universities"
	HigherStudiesGATE    HigherStudiesType = "GATE"
)

// Valid reports whether t is a known exam category.
func (t HigherStudiesType) Valid() bool {
	return t == HigherStudiesForeign || t == HigherStudiesGATE
}

// ParseHigherStudiesType normalises a submitted exam category. The web form
// labels the GATE option "Gate Exam", which is accepted as an alias.
func ParseHigherStudiesType(raw string) (HigherStudiesType, bool) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(trimmed, string(HigherStudiesForeign)):
		return HigherStudiesForeign, true
	case strings.EqualFold(trimmed, string(HigherStudiesGATE)), strings.EqualFold(trimmed, "Gate Exam"):
		return HigherStudiesGATE, true
	default:
		return "", false
	}
}

// Rating is the five point feedback scale.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingVeryGood  Rating = "Very Good"
	RatingGood      Rating = "Good"
	RatingAverage   Rating = "Average"
	RatingPoor      Rating = "Poor"
)

// DefaultRating applies to any rating left blank.
const DefaultRating = RatingGood

// RatingScale lists the ratings from best to worst.
var RatingScale = []Rating{RatingExcellent, RatingVeryGood, RatingGood, RatingAverage, RatingPoor}

// Valid reports whether r is on the scale.
func (r Rating) Valid() bool {
	for _, known := range RatingScale {
		if r == known {
			return true
		}
	}
	return false
}

// RequestStatus captures the review lifecycle.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is a lifecycle state.
func (s RequestStatus) Valid() bool {
	return s == RequestStatusPending || s == RequestStatusApproved || s == RequestStatusRejected
}

// IsDecision reports whether s is a state a reviewer may move a request to.
func (s RequestStatus) IsDecision() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// StatusFilterAll selects every status in listings.
const StatusFilterAll = "all"

// ParseStatusFilter maps a listing filter to a status. An empty filter or
// "all" yields the zero status, meaning no filtering.
func ParseStatusFilter(raw string) (RequestStatus, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" || value == StatusFilterAll {
		return "", true
	}
	status := RequestStatus(value)
	return status, status.Valid()
}

// Employed is the career outcome of a placed alumnus.
type Employed struct {
	CompanyName string `json:"companyName"`
	Package     string `json:"package"`
	City        string `json:"city"`
}

// HigherStudiesDetails describes a higher studies plan.
type HigherStudiesDetails struct {
	Exam       HigherStudiesType `json:"exam"`
	Country    string            `json:"country,omitempty"`
	Course     string            `json:"course,omitempty"`
	University string            `json:"university,omitempty"`
}

// Seeking is the career outcome of an alumnus who is not placed.
// HigherStudies is set iff Plan is Higher Studies.
type Seeking struct {
	Plan          FuturePlan
	HigherStudies *HigherStudiesDetails
}

// CareerOutcome is either Employed or Seeking.
type CareerOutcome interface {
	careerOutcome()
}

func (Employed) careerOutcome() {}
func (Seeking) careerOutcome()  {}

// ErrInvalidCareer reports stored career fields that do not form a valid outcome.
var ErrInvalidCareer = errors.New("inconsistent career outcome")

// FlatCareer is the persisted projection of a CareerOutcome.
type FlatCareer struct {
	Placed               bool
	PlacementDetails     *Employed
	FuturePlans          FuturePlan
	HigherStudiesDetails *HigherStudiesDetails
}

// Flatten projects a career outcome onto its persisted fields.
func Flatten(outcome CareerOutcome) FlatCareer {
	switch c := outcome.(type) {
	case Employed:
		details := c
		return FlatCareer{Placed: true, PlacementDetails: &details}
	case *Employed:
		return Flatten(*c)
	case Seeking:
		flat := FlatCareer{FuturePlans: c.Plan}
		if c.Plan == FuturePlanHigherStudies && c.HigherStudies != nil {
			details := *c.HigherStudies
			flat.HigherStudiesDetails = &details
		}
		return flat
	case *Seeking:
		return Flatten(*c)
	default:
		return FlatCareer{}
	}
}

// Outcome rebuilds the career outcome, rejecting both-or-neither shapes.
func (f FlatCareer) Outcome() (CareerOutcome, error) {
	if f.Placed {
		if f.PlacementDetails == nil || f.FuturePlans != "" || f.HigherStudiesDetails != nil {
			return nil, ErrInvalidCareer
		}
		return *f.PlacementDetails, nil
	}
	if f.PlacementDetails != nil || !f.FuturePlans.Valid() {
		return nil, ErrInvalidCareer
	}
	if (f.FuturePlans == FuturePlanHigherStudies) != (f.HigherStudiesDetails != nil) {
		return nil, ErrInvalidCareer
	}
	seeking := Seeking{Plan: f.FuturePlans}
	if f.HigherStudiesDetails != nil {
		details := *f.HigherStudiesDetails
		seeking.HigherStudies = &details
	}
	return seeking, nil
}

// Ratings holds the eight feedback ratings.
type Ratings struct {
	Faculty              Rating `json:"facultyRating"`
	Infrastructure       Rating `json:"infrastructureRating"`
	Library              Rating `json:"libraryRating"`
	EducationalResources Rating `json:"educationalResourcesRating"`
	Canteen              Rating `json:"canteenRating"`
	Hostel               Rating `json:"hostelRating"`
	GrievanceHandling    Rating `json:"grievanceHandlingRating"`
	Overall              Rating `json:"overallRating"`
}

// Fields exposes the ratings by their payload name, for validation and defaults.
func (r *Ratings) Fields() map[string]*Rating {
	return map[string]*Rating{
		"facultyRating":              &r.Faculty,
		"infrastructureRating":       &r.Infrastructure,
		"libraryRating":              &r.Library,
		"educationalResourcesRating": &r.EducationalResources,
		"canteenRating":              &r.Canteen,
		"hostelRating":               &r.Hostel,
		"grievanceHandlingRating":    &r.GrievanceHandling,
		"overallRating":              &r.Overall,
	}
}

// WithDefaults fills blank ratings with DefaultRating.
func (r Ratings) WithDefaults() Ratings {
	for _, rating := range r.Fields() {
		if *rating == "" {
			*rating = DefaultRating
		}
	}
	return r
}

// Owner is the submitting user as joined into admin listings.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Request is one alumni certificate request with its feedback survey.
type Request struct {
	ID                 string
	UserID             string
	Name               string
	Branch             Branch
	RollNo             string
	BatchYear          string
	MobileNo           string
	AlternativeNo      string
	Email              string
	AlternativeEmail   string
	Address            string
	CurrentDesignation string
	Career             CareerOutcome
	OpinionAboutNITJ   string
	ProudPoints        string
	CourseRelevance    string
	Ratings            Ratings
	Status             RequestStatus
	AssignedAdmin      string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Owner is populated by listings and detail lookups.
	Owner *Owner
}

// PlacementLabel is the placement status printed on verification documents.
func (r *Request) PlacementLabel() string {
	if Flatten(r.Career).Placed {
		return "Placed"
	}
	return "Not Placed"
}

type requestJSON struct {
	ID                   string                `json:"id"`
	UserID               string                `json:"userId"`
	Name                 string                `json:"name"`
	Branch               Branch                `json:"branch"`
	RollNo               string                `json:"rollNo"`
	BatchYear            string                `json:"batchYear,omitempty"`
	MobileNo             string                `json:"mobileNo"`
	AlternativeNo        string                `json:"alternativeNo,omitempty"`
	Email                string                `json:"email"`
	AlternativeEmail     string                `json:"alternativeEmail,omitempty"`
	Address              string                `json:"address,omitempty"`
	CurrentDesignation   string                `json:"currentDesignation,omitempty"`
	Placed               bool                  `json:"placed"`
	PlacementDetails     *Employed             `json:"placementDetails,omitempty"`
	FuturePlans          FuturePlan            `json:"futurePlans,omitempty"`
	HigherStudiesDetails *HigherStudiesDetails `json:"higherStudiesDetails,omitempty"`
	OpinionAboutNITJ     string                `json:"opinionAboutNITJ,omitempty"`
	ProudPoints          string                `json:"proudPoints,omitempty"`
	CourseRelevance      string                `json:"courseRelevance,omitempty"`
	Ratings
	Status        RequestStatus `json:"status"`
	AssignedAdmin string        `json:"assignedAdmin"`
	SubmittedBy   *Owner        `json:"submittedBy,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// MarshalJSON renders the career outcome as the flat placed/futurePlans fields.
func (r Request) MarshalJSON() ([]byte, error) {
	flat := Flatten(r.Career)
	return json.Marshal(requestJSON{
		ID:                   r.ID,
		UserID:               r.UserID,
		Name:                 r.Name,
		Branch:               r.Branch,
		RollNo:               r.RollNo,
		BatchYear:            r.BatchYear,
		MobileNo:             r.MobileNo,
		AlternativeNo:        r.AlternativeNo,
		Email:                r.Email,
		AlternativeEmail:     r.AlternativeEmail,
		Address:              r.Address,
		CurrentDesignation:   r.CurrentDesignation,
		Placed:               flat.Placed,
		PlacementDetails:     flat.PlacementDetails,
		FuturePlans:          flat.FuturePlans,
		HigherStudiesDetails: flat.HigherStudiesDetails,
		OpinionAboutNITJ:     r.OpinionAboutNITJ,
		ProudPoints:          r.ProudPoints,
		CourseRelevance:      r.CourseRelevance,
		Ratings:              r.Ratings,
		Status:               r.Status,
		AssignedAdmin:        r.AssignedAdmin,
		SubmittedBy:          r.Owner,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Request) UnmarshalJSON(data []byte) error {
	var wire requestJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	career, err := FlatCareer{
		Placed:               wire.Placed,
		PlacementDetails:     wire.PlacementDetails,
		FuturePlans:          wire.FuturePlans,
		HigherStudiesDetails: wire.HigherStudiesDetails,
	}.Outcome()
	if err != nil {
		return err
	}
	*r = Request{
		ID:                 wire.ID,
		UserID:             wire.UserID,
		Name:               wire.Name,
		Branch:             wire.Branch,
		RollNo:             wire.RollNo,
		BatchYear:          wire.BatchYear,
		MobileNo:           wire.MobileNo,
		AlternativeNo:      wire.AlternativeNo,
		Email:              wire.Email,
		AlternativeEmail:   wire.AlternativeEmail,
		Address:            wire.Address,
		CurrentDesignation: wire.CurrentDesignation,
		Career:             career,
		OpinionAboutNITJ:   wire.OpinionAboutNITJ,
		ProudPoints:        wire.ProudPoints,
		CourseRelevance:    wire.CourseRelevance,
		Ratings:            wire.Ratings,
		Status:             wire.Status,
		AssignedAdmin:      wire.AssignedAdmin,
		Owner:              wire.SubmittedBy,
		CreatedAt:          wire.CreatedAt,
		UpdatedAt:          wire.UpdatedAt,
	}
	return nil
}

// RequestFilter constrains assigned-request listings.
type RequestFilter struct {
	AssignedAdmin string
	Status        RequestStatus
}

// RequestDetail is the structured view an admin inspects.
type RequestDetail struct {
	ID           string         `json:"id"`
	Status       RequestStatus  `json:"status"`
	SubmittedBy  *Owner         `json:"submittedBy,omitempty"`
	PersonalInfo PersonalInfo   `json:"personalInfo"`
	Career       CareerView     `json:"career"`
	Future       FutureView     `json:"future"`
	Feedback     FeedbackView   `json:"feedback"`
	Timestamps   TimestampsView `json:"timestamps"`
}

// PersonalInfo groups identity and contact data.
type PersonalInfo struct {
	Name      string      `json:"name"`
	Branch    Branch      `json:"branch"`
	RollNo    string      `json:"rollNo"`
	BatchYear string      `json:"batchYear"`
	Address   string      `json:"address"`
	Contact   ContactInfo `json:"contact"`
}

// ContactInfo groups phone numbers and e-mail addresses.
type ContactInfo struct {
	MobileNo         string `json:"mobileNo"`
	AlternativeNo    string `json:"alternativeNo"`
	Email            string `json:"email"`
	AlternativeEmail string `json:"alternativeEmail"`
}

// CareerView shows placement state.
type CareerView struct {
	CurrentDesignation string    `json:"currentDesignation"`
	Placed             bool      `json:"placed"`
	Details            *Employed `json:"details,omitempty"`
}

// FutureView shows plans of an alumnus who is not placed.
type FutureView struct {
	Plans                FuturePlan            `json:"plans,omitempty"`
	HigherStudiesDetails *HigherStudiesDetails `json:"higherStudiesDetails,omitempty"`
}

// FeedbackView groups survey answers.
type FeedbackView struct {
	OpinionAboutNITJ string      `json:"opinionAboutNITJ"`
	ProudPoints      string      `json:"proudPoints"`
	CourseRelevance  string      `json:"courseRelevance"`
	Ratings          RatingsView `json:"ratings"`
}

// RatingsView lists ratings under short names.
type RatingsView struct {
	Faculty              Rating `json:"faculty"`
	Infrastructure       Rating `json:"infrastructure"`
	Library              Rating `json:"library"`
	EducationalResources Rating `json:"educationalResources"`
	Canteen              Rating `json:"canteen"`
	Hostel               Rating `json:"hostel"`
	GrievanceHandling    Rating `json:"grievanceHandling"`
	Overall              Rating `json:"overall"`
}

// TimestampsView carries creation and last update times.
type TimestampsView struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewRequestDetail builds the structured view of r.
func NewRequestDetail(r *Request) RequestDetail {
	flat := Flatten(r.Career)
	return RequestDetail{
		ID:          r.ID,
		Status:      r.Status,
		SubmittedBy: r.Owner,
		PersonalInfo: PersonalInfo{
			Name:      r.Name,
			Branch:    r.Branch,
			RollNo:    r.RollNo,
			BatchYear: r.BatchYear,
			Address:   r.Address,
			Contact: ContactInfo{
				MobileNo:         r.MobileNo,
				AlternativeNo:    r.AlternativeNo,
				Email:            r.Email,
				AlternativeEmail: r.AlternativeEmail,
			},
		},
		Career: CareerView{
			CurrentDesignation: r.CurrentDesignation,
			Placed:             flat.Placed,
			Details:            flat.PlacementDetails,
		},
		Future: FutureView{
			Plans:                flat.FuturePlans,
			HigherStudiesDetails: flat.HigherStudiesDetails,
		},
		Feedback: FeedbackView{
			OpinionAboutNITJ: r.OpinionAboutNITJ,
			ProudPoints:      r.ProudPoints,
			CourseRelevance:  r.CourseRelevance,
			Ratings: RatingsView{
				Faculty:              r.Ratings.Faculty,
				Infrastructure:       r.Ratings.Infrastructure,
				Library:              r.Ratings.Library,
				EducationalResources: r.Ratings.EducationalResources,
				Canteen:              r.Ratings.Canteen,
				Hostel:               r.Ratings.Hostel,
				GrievanceHandling:    r.Ratings.GrievanceHandling,
				Overall:              r.Ratings.Overall,
			},
		},
		Timestamps: TimestampsView{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
	}
}
