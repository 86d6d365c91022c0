package dto

import (
	"strings"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
)

// Placement answers accepted for SubmitRequest.Placed.
const (
	PlacedYes = "yes"
	PlacedNo  = "no"
)

// SubmitRequest is the combined certificate request and feedback payload.
// Conditional fields follow the form: placement fields for placed=yes,
// futurePlans for placed=no, higher studies fields for "Higher Studies".
type SubmitRequest struct {
	Name             string `json:"name" validate:"required"`
	Branch           string `json:"branch" validate:"required,branch"`
	RollNo           string `json:"rollNo" validate:"required"`
	BatchYear        string `json:"batchYear"`
	MobileNo         string `json:"mobileNo" validate:"required,phone"`
	AlternativeNo    string `json:"alternativeNo" validate:"omitempty,phone"`
	Email            string `json:"email" validate:"required,alumni_email"`
	AlternativeEmail string `json:"alternativeEmail" validate:"omitempty,alumni_email"`
	Address          string `json:"address"`

	Placed             string `json:"placed" validate:"required,oneof=yes no"`
	CurrentDesignation string `json:"currentDesignation"`
	CompanyName        string `json:"companyName" validate:"required_if=Placed yes"`
	Package            string `json:"package" validate:"required_if=Placed yes"`
	City               string `json:"city" validate:"required_if=Placed yes"`
	FuturePlans        string `json:"futurePlans"`
	HigherStudiesType  string `json:"higherStudiesType"`
	ForeignCountry     string `json:"foreignCountry"`
	Course             string `json:"course"`
	University         string `json:"university"`

	OpinionAboutNITJ string `json:"opinionAboutNITJ"`
	ProudPoints      string `json:"proudPoints"`
	CourseRelevance  string `json:"courseRelevance"`
	models.Ratings
}

// Normalize trims whitespace from every free-text field.
func (r *SubmitRequest) Normalize() {
	for _, field := range []*string{
		&r.Name, &r.Branch, &r.RollNo, &r.BatchYear, &r.MobileNo, &r.AlternativeNo,
		&r.Email, &r.AlternativeEmail, &r.Address, &r.Placed, &r.CurrentDesignation,
		&r.CompanyName, &r.Package, &r.City, &r.FuturePlans, &r.HigherStudiesType,
		&r.ForeignCountry, &r.Course, &r.University, &r.OpinionAboutNITJ,
		&r.ProudPoints, &r.CourseRelevance,
	} {
		*field = strings.TrimSpace(*field)
	}
	r.Branch = strings.ToUpper(r.Branch)
	r.Placed = strings.ToLower(r.Placed)
}

// UpdateStatusRequest carries a review decision.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// SubmitResult acknowledges a stored submission.
type SubmitResult struct {
	RequestID    string       `json:"requestId"`
	Verification Verification `json:"verification"`
}

// Verification describes the document confirming a submission.
type Verification struct {
	CertificateID   string `json:"certificateId"`
	FullName        string `json:"fullName"`
	RollNumber      string `json:"rollNumber"`
	BatchYear       string `json:"batchYear"`
	Email           string `json:"email"`
	PlacementStatus string `json:"placementStatus"`
	DownloadURL     string `json:"downloadUrl,omitempty"`
	ExpiresAt       string `json:"expiresAt,omitempty"`
}

// ExportFormat selects the assigned-list export encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
