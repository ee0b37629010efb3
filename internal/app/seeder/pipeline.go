package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/laboratory"
	"github.com/heartmarshall/labsim/internal/service/mission"
	"github.com/heartmarshall/labsim/internal/service/sample"
)

// allPhases defines the canonical execution order.
var allPhases = []string{"laboratories", "samples", "missions"}

// PhaseResult holds the outcome of a single pipeline phase.
type PhaseResult struct {
	Inserted int
	Skipped  int
	Errors   int
	Duration time.Duration
	Err      error
}

// Pipeline seeds a fixture for one owner. Every phase is idempotent:
// laboratories are matched by name, samples by name and missions by title.
type Pipeline struct {
	log     *slog.Logger
	svc     Services
	cfg     Config
	fixture *Fixture
	owner   auth.Identity
	labs    map[string]*domain.Laboratory
	results map[string]PhaseResult
}

// NewPipeline creates a new Pipeline.
func NewPipeline(log *slog.Logger, svc Services, cfg Config, fixture *Fixture) *Pipeline {
	return &Pipeline{
		log:     log.With("component", "seeder"),
		svc:     svc,
		cfg:     cfg,
		fixture: fixture,
		owner:   auth.Identity{UID: cfg.OwnerUID, Email: cfg.OwnerEmail, DisplayName: cfg.OwnerName},
		labs:    make(map[string]*domain.Laboratory),
		results: make(map[string]PhaseResult),
	}
}

// Results returns phase results after Run completes.
func (p *Pipeline) Results() map[string]PhaseResult {
	return p.results
}

// HasErrors returns true if any phase recorded errors.
func (p *Pipeline) HasErrors() bool {
	for _, r := range p.results {
		if r.Err != nil || r.Errors > 0 {
			return true
		}
	}
	return false
}

// Run executes the pipeline. If phases is non-empty, only the listed phases
// run. Samples and missions need their laboratory to exist.
func (p *Pipeline) Run(ctx context.Context, phases []string) error {
	if !p.cfg.DryRun {
		if _, err := p.svc.Profiles.CreateOrUpdateProfile(ctx, p.owner); err != nil {
			return fmt.Errorf("seed owner profile: %w", err)
		}
	}
	if err := p.loadExisting(ctx); err != nil {
		return err
	}

	toRun := allPhases
	if len(phases) > 0 {
		filter := make(map[string]bool, len(phases))
		for _, ph := range phases {
			filter[ph] = true
		}
		var filtered []string
		for _, ph := range allPhases {
			if filter[ph] {
				filtered = append(filtered, ph)
			}
		}
		toRun = filtered
	}

	for _, phase := range toRun {
		start := time.Now()
		p.log.Info("starting phase", slog.String("phase", phase))

		var result PhaseResult
		switch phase {
		case "laboratories":
			result = p.runLaboratories(ctx)
		case "samples":
			result = p.runSamples(ctx)
		case "missions":
			result = p.runMissions(ctx)
		}
		result.Duration = time.Since(start)
		p.results[phase] = result

		if result.Err != nil {
			p.log.Warn("phase failed",
				slog.String("phase", phase),
				slog.String("error", result.Err.Error()),
				slog.Duration("duration", result.Duration),
			)
		} else {
			p.log.Info("phase completed",
				slog.String("phase", phase),
				slog.Int("inserted", result.Inserted),
				slog.Int("skipped", result.Skipped),
				slog.Int("errors", result.Errors),
				slog.Duration("duration", result.Duration),
			)
		}
	}
	return nil
}

func (p *Pipeline) loadExisting(ctx context.Context) error {
	if p.cfg.DryRun {
		return nil
	}
	labs, err := p.svc.Labs.ListForUser(ctx, p.owner.UID)
	if err != nil {
		return fmt.Errorf("list laboratories: %w", err)
	}
	for i := range labs {
		if labs[i].OwnerID == p.owner.UID {
			p.labs[labs[i].Name] = &labs[i]
		}
	}
	return nil
}

func (p *Pipeline) runLaboratories(ctx context.Context) PhaseResult {
	var res PhaseResult
	for _, lf := range p.fixture.Laboratories {
		if _, ok := p.labs[lf.Name]; ok {
			res.Skipped++
			continue
		}
		if p.cfg.DryRun {
			res.Inserted++
			continue
		}
		lab, err := p.svc.Labs.Create(ctx, p.owner, laboratory.CreateInput{
			Name:        lf.Name,
			Description: lf.Description,
			IsPublic:    lf.Public,
		})
		if err != nil {
			p.log.Warn("create laboratory", slog.String("name", lf.Name), slog.String("error", err.Error()))
			res.Errors++
			continue
		}
		p.labs[lf.Name] = lab
		res.Inserted++
	}
	return res
}

func (p *Pipeline) runSamples(ctx context.Context) PhaseResult {
	var res PhaseResult
	for _, lf := range p.fixture.Laboratories {
		lab, ok := p.labs[lf.Name]
		if !ok {
			if !p.cfg.DryRun {
				res.Skipped += len(lf.Samples)
			} else {
				res.Inserted += len(lf.Samples)
			}
			continue
		}

		existing, err := p.svc.Samples.ListByLaboratory(ctx, lab.ID)
		if err != nil {
			res.Err = fmt.Errorf("list samples of %s: %w", lab.ID, err)
			return res
		}
		names := make(map[string]bool, len(existing))
		for _, s := range existing {
			names[s.Name] = true
		}

		for _, sf := range lf.Samples {
			if names[sf.Name] {
				res.Skipped++
				continue
			}
			if p.cfg.DryRun {
				res.Inserted++
				continue
			}
			_, err := p.svc.Samples.Create(ctx, p.owner.UID, sample.CreateInput{
				LaboratoryID: lab.ID,
				Name:         sf.Name,
				Description:  sf.Description,
				Matrix:       sf.Matrix,
				Origin:       sf.Origin,
			})
			if err != nil {
				p.log.Warn("create sample", slog.String("name", sf.Name), slog.String("error", err.Error()))
				res.Errors++
				continue
			}
			res.Inserted++
		}
	}
	return res
}

func (p *Pipeline) runMissions(ctx context.Context) PhaseResult {
	var res PhaseResult
	for _, lf := range p.fixture.Laboratories {
		lab, ok := p.labs[lf.Name]
		if !ok {
			if !p.cfg.DryRun {
				res.Skipped += len(lf.Missions)
			} else {
				res.Inserted += len(lf.Missions)
			}
			continue
		}

		existing, err := p.svc.Missions.ListAvailable(ctx, lab.ID)
		if err != nil {
			res.Err = fmt.Errorf("list missions of %s: %w", lab.ID, err)
			return res
		}
		titles := make(map[string]bool, len(existing))
		for _, m := range existing {
			titles[m.Title] = true
		}

		for _, mf := range lf.Missions {
			if titles[mf.Title] {
				res.Skipped++
				continue
			}
			if p.cfg.DryRun {
				res.Inserted++
				continue
			}
			if _, err := p.svc.Missions.Create(ctx, p.owner.UID, missionInput(lab.ID, mf)); err != nil {
				p.log.Warn("create mission", slog.String("title", mf.Title), slog.String("error", err.Error()))
				res.Errors++
				continue
			}
			res.Inserted++
		}
	}
	return res
}

func missionInput(labID string, mf MissionFixture) mission.CreateInput {
	objectives := make([]mission.ObjectiveInput, 0, len(mf.Objectives))
	for _, o := range mf.Objectives {
		objectives = append(objectives, mission.ObjectiveInput{Description: o})
	}
	difficulty := mf.Difficulty
	if difficulty == "" {
		difficulty = domain.DifficultyEasy
	}
	return mission.CreateInput{
		LaboratoryID:      labID,
		Title:             mf.Title,
		Description:       mf.Description,
		Client:            mf.Client,
		Difficulty:        difficulty,
		Objectives:        objectives,
		Rewards:           domain.MissionReward{Money: mf.Money, Experience: mf.Experience},
		RequiredEquipment: mf.Equipment,
	}
}
