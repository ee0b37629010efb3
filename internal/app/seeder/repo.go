// Package seeder loads demo laboratories, samples and missions through the
// domain services.
package seeder

import (
	"context"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/laboratory"
	"github.com/heartmarshall/labsim/internal/service/mission"
	"github.com/heartmarshall/labsim/internal/service/sample"
)

// ProfileSeeder is implemented by profile.Service.
type ProfileSeeder interface {
	CreateOrUpdateProfile(ctx context.Context, id auth.Identity) (*domain.UserProfile, error)
}

// LaboratorySeeder is implemented by laboratory.Service.
type LaboratorySeeder interface {
	Create(ctx context.Context, owner auth.Identity, input laboratory.CreateInput) (*domain.Laboratory, error)
	ListForUser(ctx context.Context, uid string) ([]domain.Laboratory, error)
}

// SampleSeeder is implemented by sample.Service.
type SampleSeeder interface {
	Create(ctx context.Context, uid string, input sample.CreateInput) (*domain.Sample, error)
	ListByLaboratory(ctx context.Context, labID string) ([]domain.Sample, error)
}

// MissionSeeder is implemented by mission.Service.
type MissionSeeder interface {
	Create(ctx context.Context, uid string, input mission.CreateInput) (*domain.Mission, error)
	ListAvailable(ctx context.Context, labID string) ([]domain.Mission, error)
}

// Services groups the seeding targets.
type Services struct {
	Profiles ProfileSeeder
	Labs     LaboratorySeeder
	Samples  SampleSeeder
	Missions MissionSeeder
}
