package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/harentsoaR/consultation-api/internal/models"
)

var _ Store = (*Mongo)(nil)

const (
	usersCollection    = "users"
	facultyCollection  = "faculties"
	bookingsCollection = "bookings"
)

type userDoc struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty"`
	Email             string              `bson:"email"`
	Password          string              `bson:"password"`
	Name              string              `bson:"name"`
	Role              string              `bson:"role"`
	StudentDepartment string              `bson:"studentDepartment,omitempty"`
	BatchNo           string              `bson:"batchNo,omitempty"`
	FacultyID         *primitive.ObjectID `bson:"facultyId,omitempty"`
	CreatedAt         time.Time           `bson:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt"`
}

type facultyDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	UserID         primitive.ObjectID `bson:"userId"`
	Department     string             `bson:"department"`
	Title          string             `bson:"title"`
	Bio            string             `bson:"bio"`
	AvailableSlots string             `bson:"availableSlots"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

type bookingDoc struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Student            primitive.ObjectID `bson:"student"`
	Faculty            primitive.ObjectID `bson:"faculty"`
	DateTime           time.Time          `bson:"dateTime"`
	StudentMessage     string             `bson:"studentMessage"`
	FinalDateTime      *time.Time         `bson:"finalDateTime,omitempty"`
	RoomNumber         string             `bson:"roomNumber,omitempty"`
	ProposedDateTime   *time.Time         `bson:"proposedDateTime,omitempty"`
	ProposedRoomNumber string             `bson:"proposedRoomNumber,omitempty"`
	DurationMinutes    int                `bson:"durationMinutes"`
	Topic              string             `bson:"topic"`
	Status             string             `bson:"status"`
	CreatedAt          time.Time          `bson:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt"`
}

// Mongo is the MongoDB backend. Each collection commits independently; there are
// no multi-document transactions.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials uri, pings the primary and ensures the unique indexes exist.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	m := &Mongo{client: client, db: client.Database(database)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	_, err = m.db.Collection(facultyCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create faculties index: %w", err)
	}
	_, err = m.db.Collection(bookingsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "faculty", Value: 1}, {Key: "dateTime", Value: 1}}},
		{Keys: bson.D{{Key: "student", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create bookings indexes: %w", err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Accounts

func (m *Mongo) CreateAccount(ctx context.Context, a *models.Account) error {
	now := time.Now().UTC()
	doc := userDoc{
		ID:                primitive.NewObjectID(),
		Email:             a.Email,
		Password:          a.PasswordHash,
		Name:              a.Name,
		Role:              string(a.Role),
		StudentDepartment: a.StudentDepartment,
		BatchNo:           a.BatchNo,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if a.FacultyProfileID != "" {
		fid, err := primitive.ObjectIDFromHex(a.FacultyProfileID)
		if err != nil {
			return fmt.Errorf("faculty id %q: %w", a.FacultyProfileID, err)
		}
		doc.FacultyID = &fid
	}
	if _, err := m.db.Collection(usersCollection).InsertOne(ctx, doc); err != nil {
		return translateMongo(err)
	}
	a.ID = doc.ID.Hex()
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

func (m *Mongo) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.findAccount(ctx, bson.M{"_id": oid})
}

func (m *Mongo) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.findAccount(ctx, bson.M{"email": email})
}

func (m *Mongo) findAccount(ctx context.Context, filter bson.M) (*models.Account, error) {
	var doc userDoc
	if err := m.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongo(err)
	}
	return doc.toModel(), nil
}

func (m *Mongo) GetAccounts(ctx context.Context, ids []string) (map[string]*models.Account, error) {
	out := make(map[string]*models.Account, len(ids))
	oids := toObjectIDs(ids)
	if len(oids) == 0 {
		return out, nil
	}
	cursor, err := m.db.Collection(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, translateMongo(err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for i := range docs {
		a := docs[i].toModel()
		out[a.ID] = a
	}
	return out, nil
}

func (m *Mongo) UpdateAccount(ctx context.Context, a *models.Account) error {
	oid, err := primitive.ObjectIDFromHex(a.ID)
	if err != nil {
		return ErrNotFound
	}
	set := bson.M{
		"email":     a.Email,
		"password":  a.PasswordHash,
		"name":      a.Name,
		"role":      string(a.Role),
		"updatedAt": time.Now().UTC(),
	}
	unset := bson.M{}
	setOrUnset(set, unset, "studentDepartment", a.StudentDepartment)
	setOrUnset(set, unset, "batchNo", a.BatchNo)
	if a.FacultyProfileID != "" {
		fid, err := primitive.ObjectIDFromHex(a.FacultyProfileID)
		if err != nil {
			return fmt.Errorf("faculty id %q: %w", a.FacultyProfileID, err)
		}
		set["facultyId"] = fid
	} else {
		unset["facultyId"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := m.db.Collection(usersCollection).UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	a.UpdatedAt = set["updatedAt"].(time.Time)
	return nil
}

func (m *Mongo) DeleteAccount(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := m.db.Collection(usersCollection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translateMongo(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Faculty profiles

func (m *Mongo) CreateFaculty(ctx context.Context, p *models.FacultyProfile) error {
	uid, err := primitive.ObjectIDFromHex(p.AccountID)
	if err != nil {
		return fmt.Errorf("account id %q: %w", p.AccountID, err)
	}
	now := time.Now().UTC()
	doc := facultyDoc{
		ID:             primitive.NewObjectID(),
		UserID:         uid,
		Department:     p.Department,
		Title:          p.Title,
		Bio:            p.Bio,
		AvailableSlots: p.AvailableSlots,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := m.db.Collection(facultyCollection).InsertOne(ctx, doc); err != nil {
		return translateMongo(err)
	}
	p.ID = doc.ID.Hex()
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (m *Mongo) GetFaculty(ctx context.Context, id string) (*models.FacultyProfile, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.findFaculty(ctx, bson.M{"_id": oid})
}

func (m *Mongo) GetFacultyByAccount(ctx context.Context, accountID string) (*models.FacultyProfile, error) {
	uid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.findFaculty(ctx, bson.M{"userId": uid})
}

func (m *Mongo) findFaculty(ctx context.Context, filter bson.M) (*models.FacultyProfile, error) {
	var doc facultyDoc
	if err := m.db.Collection(facultyCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongo(err)
	}
	return doc.toModel(), nil
}

func (m *Mongo) GetFaculties(ctx context.Context, ids []string) (map[string]*models.FacultyProfile, error) {
	out := make(map[string]*models.FacultyProfile, len(ids))
	oids := toObjectIDs(ids)
	if len(oids) == 0 {
		return out, nil
	}
	profiles, err := m.findFaculties(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func (m *Mongo) ListFaculty(ctx context.Context) ([]*models.FacultyProfile, error) {
	return m.findFaculties(ctx, bson.M{})
}

func (m *Mongo) findFaculties(ctx context.Context, filter bson.M) ([]*models.FacultyProfile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := m.db.Collection(facultyCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, translateMongo(err)
	}
	var docs []facultyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode faculties: %w", err)
	}
	out := make([]*models.FacultyProfile, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (m *Mongo) UpdateFaculty(ctx context.Context, p *models.FacultyProfile) error {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	res, err := m.db.Collection(facultyCollection).UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"department":     p.Department,
		"title":          p.Title,
		"bio":            p.Bio,
		"availableSlots": p.AvailableSlots,
		"updatedAt":      now,
	}})
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (m *Mongo) DeleteFaculty(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := m.db.Collection(facultyCollection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translateMongo(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Bookings

func (m *Mongo) CreateBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	doc, err := newBookingDoc(b)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := m.db.Collection(bookingsCollection).InsertOne(ctx, doc); err != nil {
		return translateMongo(err)
	}
	b.ID = doc.ID.Hex()
	return nil
}

func (m *Mongo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc bookingDoc
	if err := m.db.Collection(bookingsCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translateMongo(err)
	}
	return doc.toModel(), nil
}

// UpdateBooking replaces the whole document, so schedule fields cleared on the
// model are removed from storage as well. Last write wins.
func (m *Mongo) UpdateBooking(ctx context.Context, b *models.Booking) error {
	b.UpdatedAt = time.Now().UTC()
	doc, err := newBookingDoc(b)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(b.ID)
	if err != nil {
		return ErrNotFound
	}
	doc.ID = oid
	res, err := m.db.Collection(bookingsCollection).ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) ListBookingsByStudent(ctx context.Context, studentID string) ([]*models.Booking, error) {
	oid, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return []*models.Booking{}, nil
	}
	return m.findBookings(ctx, bson.M{"student": oid})
}

func (m *Mongo) ListBookingsByFaculty(ctx context.Context, facultyID string) ([]*models.Booking, error) {
	oid, err := primitive.ObjectIDFromHex(facultyID)
	if err != nil {
		return []*models.Booking{}, nil
	}
	return m.findBookings(ctx, bson.M{"faculty": oid})
}

func (m *Mongo) findBookings(ctx context.Context, filter bson.M) ([]*models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := m.db.Collection(bookingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, translateMongo(err)
	}
	var docs []bookingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	out := make([]*models.Booking, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func newBookingDoc(b *models.Booking) (bookingDoc, error) {
	student, err := primitive.ObjectIDFromHex(b.StudentID)
	if err != nil {
		return bookingDoc{}, fmt.Errorf("student id %q: %w", b.StudentID, err)
	}
	faculty, err := primitive.ObjectIDFromHex(b.FacultyID)
	if err != nil {
		return bookingDoc{}, fmt.Errorf("faculty id %q: %w", b.FacultyID, err)
	}
	return bookingDoc{
		Student:            student,
		Faculty:            faculty,
		DateTime:           b.DateTime,
		StudentMessage:     b.StudentMessage,
		FinalDateTime:      b.FinalDateTime,
		RoomNumber:         b.RoomNumber,
		ProposedDateTime:   b.ProposedDateTime,
		ProposedRoomNumber: b.ProposedRoomNumber,
		DurationMinutes:    b.DurationMinutes,
		Topic:              b.Topic,
		Status:             string(b.Status),
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}, nil
}

func (d *userDoc) toModel() *models.Account {
	a := &models.Account{
		ID:                d.ID.Hex(),
		Email:             d.Email,
		PasswordHash:      d.Password,
		Name:              d.Name,
		Role:              models.Role(d.Role),
		StudentDepartment: d.StudentDepartment,
		BatchNo:           d.BatchNo,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	if d.FacultyID != nil {
		a.FacultyProfileID = d.FacultyID.Hex()
	}
	return a
}

func (d *facultyDoc) toModel() *models.FacultyProfile {
	return &models.FacultyProfile{
		ID:             d.ID.Hex(),
		AccountID:      d.UserID.Hex(),
		Department:     d.Department,
		Title:          d.Title,
		Bio:            d.Bio,
		AvailableSlots: d.AvailableSlots,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (d *bookingDoc) toModel() *models.Booking {
	return &models.Booking{
		ID:                 d.ID.Hex(),
		StudentID:          d.Student.Hex(),
		FacultyID:          d.Faculty.Hex(),
		DateTime:           d.DateTime,
		StudentMessage:     d.StudentMessage,
		FinalDateTime:      d.FinalDateTime,
		RoomNumber:         d.RoomNumber,
		ProposedDateTime:   d.ProposedDateTime,
		ProposedRoomNumber: d.ProposedRoomNumber,
		DurationMinutes:    d.DurationMinutes,
		Topic:              d.Topic,
		Status:             models.BookingStatus(d.Status),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func toObjectIDs(ids []string) []primitive.ObjectID {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	return oids
}

func setOrUnset(set, unset bson.M, key, value string) {
	if value == "" {
		unset[key] = ""
		return
	}
	set[key] = value
}

func translateMongo(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}
