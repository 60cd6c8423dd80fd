package auth

import (
	"context"
	"sync"

	"github.com/evergreen-ci/slither"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CredentialStore resolves the sites and users referenced by signed
// requests. Lookups of unknown keys return nil without an error.
type CredentialStore interface {
	FindSite(ctx context.Context, key string) (*Site, error)
	FindUser(ctx context.Context, site any, accessKey string) (*User, error)
}

// DBCredentialStore reads sites and users from the database.
type DBCredentialStore struct {
	DB *mongo.Database
}

func (s *DBCredentialStore) FindSite(ctx context.Context, key string) (*Site, error) {
	site := &Site{}
	err := s.DB.Collection(slither.SitesCollection).FindOne(ctx, bson.M{"key": key}).Decode(site)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding site with key '%s'", key)
	}
	return site, nil
}

func (s *DBCredentialStore) FindUser(ctx context.Context, site any, accessKey string) (*User, error) {
	u := &User{}
	err := s.DB.Collection(slither.UsersCollection).FindOne(ctx, bson.M{
		"site":            site,
		"auth.access_key": accessKey,
	}).Decode(u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding user with access key '%s'", accessKey)
	}
	return u, nil
}

// MockCredentialStore keeps sites and users in memory.
type MockCredentialStore struct {
	Sites []Site
	Users []User

	mu sync.RWMutex
}

func (s *MockCredentialStore) FindSite(_ context.Context, key string) (*Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for idx := range s.Sites {
		if s.Sites[idx].Key == key {
			site := s.Sites[idx]
			return &site, nil
		}
	}
	return nil, nil
}

func (s *MockCredentialStore) FindUser(_ context.Context, site any, accessKey string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for idx := range s.Users {
		u := s.Users[idx]
		if u.Site == site && u.Auth.AccessKey == accessKey {
			return &u, nil
		}
	}
	return nil, nil
}
