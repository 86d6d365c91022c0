package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
)

const (
	requestsCollection = "requests"
	usersCollection    = "users"
)

type placementDocument struct {
	CompanyName string `bson:"companyName"`
	Package     string `bson:"package"`
	City        string `bson:"city"`
}

type higherStudiesDocument struct {
	Exam       string `bson:"exam"`
	Country    string `bson:"country,omitempty"`
	Course     string `bson:"course,omitempty"`
	University string `bson:"university,omitempty"`
}

type ownerDocument struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

type requestDocument struct {
	ID                   string                 `bson:"_id"`
	UserID               string                 `bson:"userId"`
	Name                 string                 `bson:"name"`
	Branch               string                 `bson:"branch"`
	RollNo               string                 `bson:"rollNo"`
	BatchYear            string                 `bson:"batchYear"`
	MobileNo             string                 `bson:"mobileNo"`
	AlternativeNo        string                 `bson:"alternativeNo"`
	Email                string                 `bson:"email"`
	AlternativeEmail     string                 `bson:"alternativeEmail"`
	Address              string                 `bson:"address"`
	CurrentDesignation   string                 `bson:"currentDesignation"`
	Placed               bool                   `bson:"placed"`
	PlacementDetails     *placementDocument     `bson:"placementDetails,omitempty"`
	FuturePlans          string                 `bson:"futurePlans,omitempty"`
	HigherStudiesDetails *higherStudiesDocument `bson:"higherStudiesDetails,omitempty"`
	OpinionAboutNITJ     string                 `bson:"opinionAboutNITJ"`
	ProudPoints          string                 `bson:"proudPoints"`
	CourseRelevance      string                 `bson:"courseRelevance"`
	FacultyRating        string                 `bson:"facultyRating"`
	InfrastructureRating string                 `bson:"infrastructureRating"`
	LibraryRating        string                 `bson:"libraryRating"`
	EducationalResources string                 `bson:"educationalResourcesRating"`
	CanteenRating        string                 `bson:"canteenRating"`
	HostelRating         string                 `bson:"hostelRating"`
	GrievanceHandling    string                 `bson:"grievanceHandlingRating"`
	OverallRating        string                 `bson:"overallRating"`
	Status               string                 `bson:"status"`
	AssignedAdmin        string                 `bson:"assignedAdmin"`
	CreatedAt            time.Time              `bson:"createdAt"`
	UpdatedAt            time.Time              `bson:"updatedAt"`
	Owner                *ownerDocument         `bson:"owner,omitempty"`
}

func newRequestDocument(req *models.Request) requestDocument {
	flat := models.Flatten(req.Career)
	doc := requestDocument{
		ID:                   req.ID,
		UserID:               req.UserID,
		Name:                 req.Name,
		Branch:               string(req.Branch),
		RollNo:               req.RollNo,
		BatchYear:            req.BatchYear,
		MobileNo:             req.MobileNo,
		AlternativeNo:        req.AlternativeNo,
		Email:                req.Email,
		AlternativeEmail:     req.AlternativeEmail,
		Address:              req.Address,
		CurrentDesignation:   req.CurrentDesignation,
		Placed:               flat.Placed,
		FuturePlans:          string(flat.FuturePlans),
		OpinionAboutNITJ:     req.OpinionAboutNITJ,
		ProudPoints:          req.ProudPoints,
		CourseRelevance:      req.CourseRelevance,
		FacultyRating:        string(req.Ratings.Faculty),
		InfrastructureRating: string(req.Ratings.Infrastructure),
		LibraryRating:        string(req.Ratings.Library),
		EducationalResources: string(req.Ratings.EducationalResources),
		CanteenRating:        string(req.Ratings.Canteen),
		HostelRating:         string(req.Ratings.Hostel),
		GrievanceHandling:    string(req.Ratings.GrievanceHandling),
		OverallRating:        string(req.Ratings.Overall),
		Status:               string(req.Status),
		AssignedAdmin:        req.AssignedAdmin,
		CreatedAt:            req.CreatedAt,
		UpdatedAt:            req.UpdatedAt,
	}
	if d := flat.PlacementDetails; d != nil {
		doc.PlacementDetails = &placementDocument{CompanyName: d.CompanyName, Package: d.Package, City: d.City}
	}
	if d := flat.HigherStudiesDetails; d != nil {
		doc.HigherStudiesDetails = &higherStudiesDocument{Exam: string(d.Exam), Country: d.Country, Course: d.Course, University: d.University}
	}
	return doc
}

func (doc requestDocument) model() (*models.Request, error) {
	flat := models.FlatCareer{Placed: doc.Placed, FuturePlans: models.FuturePlan(doc.FuturePlans)}
	if d := doc.PlacementDetails; d != nil {
		flat.PlacementDetails = &models.Employed{CompanyName: d.CompanyName, Package: d.Package, City: d.City}
	}
	if d := doc.HigherStudiesDetails; d != nil {
		flat.HigherStudiesDetails = &models.HigherStudiesDetails{
			Exam:       models.HigherStudiesType(d.Exam),
			Country:    d.Country,
			Course:     d.Course,
			University: d.University,
		}
	}
	career, err := flat.Outcome()
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", doc.ID, err)
	}
	req := &models.Request{
		ID:                 doc.ID,
		UserID:             doc.UserID,
		Name:               doc.Name,
		Branch:             models.Branch(doc.Branch),
		RollNo:             doc.RollNo,
		BatchYear:          doc.BatchYear,
		MobileNo:           doc.MobileNo,
		AlternativeNo:      doc.AlternativeNo,
		Email:              doc.Email,
		AlternativeEmail:   doc.AlternativeEmail,
		Address:            doc.Address,
		CurrentDesignation: doc.CurrentDesignation,
		Career:             career,
		OpinionAboutNITJ:   doc.OpinionAboutNITJ,
		ProudPoints:        doc.ProudPoints,
		CourseRelevance:    doc.CourseRelevance,
		Ratings: models.Ratings{
			Faculty:              models.Rating(doc.FacultyRating),
			Infrastructure:       models.Rating(doc.InfrastructureRating),
			Library:              models.Rating(doc.LibraryRating),
			EducationalResources: models.Rating(doc.EducationalResources),
			Canteen:              models.Rating(doc.CanteenRating),
			Hostel:               models.Rating(doc.HostelRating),
			GrievanceHandling:    models.Rating(doc.GrievanceHandling),
			Overall:              models.Rating(doc.OverallRating),
		},
		Status:        models.RequestStatus(doc.Status),
		AssignedAdmin: doc.AssignedAdmin,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if doc.Owner != nil {
		req.Owner = &models.Owner{ID: doc.Owner.ID, Name: doc.Owner.Name, Email: doc.Owner.Email}
	}
	return req, nil
}

// RequestMongoRepository persists certificate requests in MongoDB.
type RequestMongoRepository struct {
	collection *mongo.Collection
}

// NewRequestMongoRepository constructs a RequestMongoRepository.
func NewRequestMongoRepository(db *mongo.Database) *RequestMongoRepository {
	return &RequestMongoRepository{collection: db.Collection(requestsCollection)}
}

// EnsureIndexes creates the single-pending and listing indexes.
func (r *RequestMongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetName("requests_one_pending_per_user").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(models.RequestStatusPending)}),
		},
		{
			Keys:    bson.D{{Key: "assignedAdmin", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("requests_assigned_admin_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("create request indexes: %w", err)
	}
	return nil
}

// Create inserts a request, mapping a duplicate key on the pending index to ErrDuplicatePending.
func (r *RequestMongoRepository) Create(ctx context.Context, req *models.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	if _, err := r.collection.InsertOne(ctx, newRequestDocument(req)); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePending
		}
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// HasPending reports whether the user has a request awaiting review.
func (r *RequestMongoRepository) HasPending(ctx context.Context, userID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx,
		bson.M{"userId": userID, "status": string(models.RequestStatusPending)},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return count > 0, nil
}

func ownerLookup() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: "userId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner"},
		}}},
		{{Key: "$unwind", Value: bson.D{{Key: "path", Value: "$owner"}, {Key: "preserveNullAndEmptyArrays", Value: true}}}},
	}
}

func (r *RequestMongoRepository) aggregate(ctx context.Context, match bson.D, tail ...bson.D) ([]models.Request, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
	pipeline = append(pipeline, tail...)
	pipeline = append(pipeline, ownerLookup()...)

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []requestDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	requests := make([]models.Request, 0, len(docs))
	for _, doc := range docs {
		req, err := doc.model()
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, nil
}

// GetForAdmin returns the request when it is assigned to adminID.
func (r *RequestMongoRepository) GetForAdmin(ctx context.Context, id, adminID string) (*models.Request, error) {
	requests, err := r.aggregate(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "assignedAdmin", Value: adminID}},
		bson.D{{Key: "$limit", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if len(requests) == 0 {
		return nil, ErrNotFound
	}
	return &requests[0], nil
}

// ListAssigned returns requests assigned to an admin, newest first.
func (r *RequestMongoRepository) ListAssigned(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	match := bson.D{{Key: "assignedAdmin", Value: filter.AssignedAdmin}}
	if filter.Status != "" {
		match = append(match, bson.E{Key: "status", Value: string(filter.Status)})
	}
	requests, err := r.aggregate(ctx, match, bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}})
	if err != nil {
		return nil, fmt.Errorf("list assigned requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus moves a pending request to status. It returns ErrNotFound
// when the request is not pending or not assigned to adminID.
func (r *RequestMongoRepository) UpdateStatus(ctx context.Context, id, adminID string, status models.RequestStatus, updatedAt time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "assignedAdmin": adminID, "status": string(models.RequestStatusPending)},
		bson.M{"$set": bson.M{"status": string(status), "updatedAt": updatedAt}})
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
