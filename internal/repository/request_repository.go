package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
)

var requestColumns = []string{
	"id", "user_id", "name", "branch", "roll_no", "batch_year", "mobile_no", "alternative_no",
	"email", "alternative_email", "address", "current_designation", "placed", "company_name",
	"package", "city", "future_plans", "higher_studies_exam", "higher_studies_country",
	"higher_studies_course", "higher_studies_university", "opinion_about_nitj", "proud_points",
	"course_relevance", "faculty_rating", "infrastructure_rating", "library_rating",
	"educational_resources_rating", "canteen_rating", "hostel_rating",
	"grievance_handling_rating", "overall_rating", "status", "assigned_admin", "created_at",
	"updated_at",
}

// requestSelect joins the submitting user so listings carry name and email.
var requestSelect = func() string {
	cols := make([]string, len(requestColumns))
	for i, c := range requestColumns {
		cols[i] = "r." + c
	}
	return "SELECT " + strings.Join(cols, ", ") +
		", u.name AS owner_name, u.email AS owner_email FROM requests r LEFT JOIN users u ON u.id = r.user_id"
}()

var requestInsert = func() string {
	named := make([]string, len(requestColumns))
	for i, c := range requestColumns {
		named[i] = ":" + c
	}
	return "INSERT INTO requests (" + strings.Join(requestColumns, ", ") + ") VALUES (" + strings.Join(named, ", ") + ")"
}()

type requestRow struct {
	ID                      string         `db:"id"`
	UserID                  string         `db:"user_id"`
	Name                    string         `db:"name"`
	Branch                  string         `db:"branch"`
	RollNo                  string         `db:"roll_no"`
	BatchYear               string         `db:"batch_year"`
	MobileNo                string         `db:"mobile_no"`
	AlternativeNo           string         `db:"alternative_no"`
	Email                   string         `db:"email"`
	AlternativeEmail        string         `db:"alternative_email"`
	Address                 string         `db:"address"`
	CurrentDesignation      string         `db:"current_designation"`
	Placed                  bool           `db:"placed"`
	CompanyName             sql.NullString `db:"company_name"`
	Package                 sql.NullString `db:"package"`
	City                    sql.NullString `db:"city"`
	FuturePlans             sql.NullString `db:"future_plans"`
	HigherStudiesExam       sql.NullString `db:"higher_studies_exam"`
	HigherStudiesCountry    sql.NullString `db:"higher_studies_country"`
	HigherStudiesCourse     sql.NullString `db:"higher_studies_course"`
	HigherStudiesUniversity sql.NullString `db:"higher_studies_university"`
	OpinionAboutNITJ        string         `db:"opinion_about_nitj"`
	ProudPoints             string         `db:"proud_points"`
	CourseRelevance         string         `db:"course_relevance"`
	FacultyRating           string         `db:"faculty_rating"`
	InfrastructureRating    string         `db:"infrastructure_rating"`
	LibraryRating           string         `db:"library_rating"`
	EducationalResources    string         `db:"educational_resources_rating"`
	CanteenRating           string         `db:"canteen_rating"`
	HostelRating            string         `db:"hostel_rating"`
	GrievanceHandlingRating string         `db:"grievance_handling_rating"`
	OverallRating           string         `db:"overall_rating"`
	Status                  string         `db:"status"`
	AssignedAdmin           string         `db:"assigned_admin"`
	CreatedAt               time.Time      `db:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at"`
	OwnerName               sql.NullString `db:"owner_name"`
	OwnerEmail              sql.NullString `db:"owner_email"`
}

func nullString(value string, valid bool) sql.NullString {
	return sql.NullString{String: value, Valid: valid}
}

func newRequestRow(req *models.Request) requestRow {
	flat := models.Flatten(req.Career)
	row := requestRow{
		ID:                      req.ID,
		UserID:                  req.UserID,
		Name:                    req.Name,
		Branch:                  string(req.Branch),
		RollNo:                  req.RollNo,
		BatchYear:               req.BatchYear,
		MobileNo:                req.MobileNo,
		AlternativeNo:           req.AlternativeNo,
		Email:                   req.Email,
		AlternativeEmail:        req.AlternativeEmail,
		Address:                 req.Address,
		CurrentDesignation:      req.CurrentDesignation,
		Placed:                  flat.Placed,
		FuturePlans:             nullString(string(flat.FuturePlans), flat.FuturePlans != ""),
		OpinionAboutNITJ:        req.OpinionAboutNITJ,
		ProudPoints:             req.ProudPoints,
		CourseRelevance:         req.CourseRelevance,
		FacultyRating:           string(req.Ratings.Faculty),
		InfrastructureRating:    string(req.Ratings.Infrastructure),
		LibraryRating:           string(req.Ratings.Library),
		EducationalResources:    string(req.Ratings.EducationalResources),
		CanteenRating:           string(req.Ratings.Canteen),
		HostelRating:            string(req.Ratings.Hostel),
		GrievanceHandlingRating: string(req.Ratings.GrievanceHandling),
		OverallRating:           string(req.Ratings.Overall),
		Status:                  string(req.Status),
		AssignedAdmin:           req.AssignedAdmin,
		CreatedAt:               req.CreatedAt,
		UpdatedAt:               req.UpdatedAt,
	}
	if d := flat.PlacementDetails; d != nil {
		row.CompanyName = nullString(d.CompanyName, true)
		row.Package = nullString(d.Package, true)
		row.City = nullString(d.City, true)
	}
	if d := flat.HigherStudiesDetails; d != nil {
		row.HigherStudiesExam = nullString(string(d.Exam), true)
		row.HigherStudiesCountry = nullString(d.Country, d.Country != "")
		row.HigherStudiesCourse = nullString(d.Course, d.Course != "")
		row.HigherStudiesUniversity = nullString(d.University, d.University != "")
	}
	return row
}

func (row requestRow) model() (*models.Request, error) {
	flat := models.FlatCareer{Placed: row.Placed, FuturePlans: models.FuturePlan(row.FuturePlans.String)}
	if row.Placed {
		flat.PlacementDetails = &models.Employed{
			CompanyName: row.CompanyName.String,
			Package:     row.Package.String,
			City:        row.City.String,
		}
	}
	if row.HigherStudiesExam.Valid {
		flat.HigherStudiesDetails = &models.HigherStudiesDetails{
			Exam:       models.HigherStudiesType(row.HigherStudiesExam.String),
			Country:    row.HigherStudiesCountry.String,
			Course:     row.HigherStudiesCourse.String,
			University: row.HigherStudiesUniversity.String,
		}
	}
	career, err := flat.Outcome()
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", row.ID, err)
	}

	req := &models.Request{
		ID:                 row.ID,
		UserID:             row.UserID,
		Name:               row.Name,
		Branch:             models.Branch(row.Branch),
		RollNo:             row.RollNo,
		BatchYear:          row.BatchYear,
		MobileNo:           row.MobileNo,
		AlternativeNo:      row.AlternativeNo,
		Email:              row.Email,
		AlternativeEmail:   row.AlternativeEmail,
		Address:            row.Address,
		CurrentDesignation: row.CurrentDesignation,
		Career:             career,
		OpinionAboutNITJ:   row.OpinionAboutNITJ,
		ProudPoints:        row.ProudPoints,
		CourseRelevance:    row.CourseRelevance,
		Ratings: models.Ratings{
			Faculty:              models.Rating(row.FacultyRating),
			Infrastructure:       models.Rating(row.InfrastructureRating),
			Library:              models.Rating(row.LibraryRating),
			EducationalResources: models.Rating(row.EducationalResources),
			Canteen:              models.Rating(row.CanteenRating),
			Hostel:               models.Rating(row.HostelRating),
			GrievanceHandling:    models.Rating(row.GrievanceHandlingRating),
			Overall:              models.Rating(row.OverallRating),
		},
		Status:        models.RequestStatus(row.Status),
		AssignedAdmin: row.AssignedAdmin,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.OwnerName.Valid || row.OwnerEmail.Valid {
		req.Owner = &models.Owner{ID: row.UserID, Name: row.OwnerName.String, Email: row.OwnerEmail.String}
	}
	return req, nil
}

// RequestRepository persists certificate requests in Postgres.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a request. A second pending request for the same user
// violates requests_one_pending_per_user and yields ErrDuplicatePending.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	if _, err := r.db.NamedExecContext(ctx, requestInsert, newRequestRow(req)); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePending
		}
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// HasPending reports whether the user has a request awaiting review.
func (r *RequestRepository) HasPending(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT 1 FROM requests WHERE user_id = $1 AND status = 'pending' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return true, nil
}

// GetForAdmin returns the request when it is assigned to adminID.
func (r *RequestRepository) GetForAdmin(ctx context.Context, id, adminID string) (*models.Request, error) {
	query := requestSelect + " WHERE r.id = $1 AND r.assigned_admin = $2 LIMIT 1"
	var row requestRow
	if err := r.db.GetContext(ctx, &row, query, id, adminID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return row.model()
}

// ListAssigned returns requests assigned to an admin, newest first.
func (r *RequestRepository) ListAssigned(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	query := requestSelect + " WHERE r.assigned_admin = $1"
	args := []interface{}{filter.AssignedAdmin}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND r.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY r.created_at DESC"

	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list assigned requests: %w", err)
	}
	requests := make([]models.Request, 0, len(rows))
	for _, row := range rows {
		req, err := row.model()
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, nil
}

// UpdateStatus moves a pending request to status. It returns ErrNotFound
// when the request is not pending or not assigned to adminID.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id, adminID string, status models.RequestStatus, updatedAt time.Time) error {
	const query = `UPDATE requests SET status = $3, updated_at = $4 WHERE id = $1 AND assigned_admin = $2 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, adminID, status, updatedAt)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request status rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
