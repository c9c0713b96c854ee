package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/auth"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/db"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// RegisterInput carries the fields accepted at registration. AcceptedWasteTypes
// is only meaningful for collectors.
type RegisterInput struct {
	Role               models.Role
	Name               string
	Email              string
	Password           string
	Phone              string
	Address            string
	AcceptedWasteTypes []string
}

// AuthResult identifies a successfully registered or authenticated account.
type AuthResult struct {
	ID    utils.SixID
	Role  models.Role
	Name  string
	Email string
}

// IAccountService manages the four account collections.
type IAccountService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, role models.Role, email, password string) (*AuthResult, error)
	Resolve(ctx context.Context, role models.Role, id utils.SixID) (*models.Account, error)
	FindUser(ctx context.Context, id utils.SixID) (*models.User, error)
	FindCollector(ctx context.Context, id utils.SixID) (*models.Collector, error)
	FindVendor(ctx context.Context, id utils.SixID) (*models.Vendor, error)
	UpdateProfile(ctx context.Context, role models.Role, id utils.SixID, updates map[string]interface{}) error
	Deactivate(ctx context.Context, role models.Role, id utils.SixID) error
}

type accountService struct {
	db *mongo.Database
}

// NewAccountService creates a new AccountService.
func NewAccountService(database *mongo.Database) IAccountService {
	return &accountService{db: database}
}

// Register creates a new account in the role's collection. The email is
// unique per collection; a duplicate registration fails with ErrConflict.
func (s *accountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrValidation)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := time.Now().UTC()
	account := models.Account{
		Base:         models.NewBase(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		Address:      in.Address,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var doc interface{}
	switch in.Role {
	case models.RoleUser:
		doc = &models.User{Account: account, Badges: []utils.SixID{}}
	case models.RoleCollector:
		doc = &models.Collector{
			Account:            account,
			AcceptedWasteTypes: in.AcceptedWasteTypes,
			Inventory:          map[string]float64{},
		}
	case models.RoleVendor:
		doc = &models.Vendor{Account: account}
	case models.RoleAdmin:
		doc = &models.Admin{Account: account}
	}

	_, err = s.db.Collection(in.Role.Collection()).InsertOne(ctx, doc)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, fmt.Errorf("failed to register %s account: %w", in.Role, err)
	}

	return &AuthResult{ID: account.ID, Role: in.Role, Name: account.Name, Email: account.Email}, nil
}

// Login verifies credentials against the role's collection. Deactivated
// accounts cannot log in.
func (s *accountService) Login(ctx context.Context, role models.Role, email, password string) (*AuthResult, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	email = strings.ToLower(strings.TrimSpace(email))

	var account models.Account
	err := s.db.Collection(role.Collection()).FindOne(ctx, bson.M{"email": email}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to look up %s account: %w", role, err)
	}
	if !auth.CheckPasswordHash(password, account.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if !account.Active {
		return nil, fmt.Errorf("%w: account is deactivated", ErrUnauthorized)
	}

	return &AuthResult{ID: account.ID, Role: role, Name: account.Name, Email: account.Email}, nil
}

// Resolve fetches the common account fields for any role. Used by the auth
// gate so deactivation locks a token out immediately.
func (s *accountService) Resolve(ctx context.Context, role models.Role, id utils.SixID) (*models.Account, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	var account models.Account
	err := s.db.Collection(role.Collection()).FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s account", ErrNotFound, role)
		}
		return nil, fmt.Errorf("failed to resolve %s account %s: %w", role, id.String(), err)
	}
	return &account, nil
}

func (s *accountService) FindUser(ctx context.Context, id utils.SixID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(models.RoleUser.Collection()).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find user %s: %w", id.String(), err)
	}
	return &user, nil
}

func (s *accountService) FindCollector(ctx context.Context, id utils.SixID) (*models.Collector, error) {
	var collector models.Collector
	err := s.db.Collection(models.RoleCollector.Collection()).FindOne(ctx, bson.M{"_id": id}).Decode(&collector)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: collector", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find collector %s: %w", id.String(), err)
	}
	return &collector, nil
}

func (s *accountService) FindVendor(ctx context.Context, id utils.SixID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := s.db.Collection(models.RoleVendor.Collection()).FindOne(ctx, bson.M{"_id": id}).Decode(&vendor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: vendor", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find vendor %s: %w", id.String(), err)
	}
	return &vendor, nil
}

// UpdateProfile updates mutable contact fields. Counter and credential fields
// cannot be touched through this path.
func (s *accountService) UpdateProfile(ctx context.Context, role models.Role, id utils.SixID, updates map[string]interface{}) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	allowed := bson.M{}
	for key, value := range updates {
		switch key {
		case "name", "phone", "address":
			allowed[key] = value
		case "accepted_waste_types":
			if role != models.RoleCollector {
				return fmt.Errorf("%w: accepted_waste_types only applies to collectors", ErrValidation)
			}
			allowed[key] = value
		default:
			return fmt.Errorf("%w: field %q cannot be updated", ErrValidation, key)
		}
	}
	if len(allowed) == 0 {
		return fmt.Errorf("%w: no valid fields provided for update", ErrValidation)
	}
	allowed["updated_at"] = time.Now().UTC()

	result, err := s.db.Collection(role.Collection()).UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": allowed},
	)
	if err != nil {
		return fmt.Errorf("failed to update %s profile %s: %w", role, id.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s account", ErrNotFound, role)
	}
	return nil
}

// Deactivate soft-deletes an account. The record is kept; the auth gate
// rejects the account on its next request.
func (s *accountService) Deactivate(ctx context.Context, role models.Role, id utils.SixID) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	opts := options.Update()
	result, err := s.db.Collection(role.Collection()).UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}},
		opts,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate %s account %s: %w", role, id.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s account not found or already deactivated", ErrConflict, role)
	}
	return nil
}
