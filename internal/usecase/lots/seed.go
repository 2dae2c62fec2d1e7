package lots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

// SeedFile is the YAML shape accepted by `agritrace lot import`.
type SeedFile struct {
	Lots []SeedLot `yaml:"lots"`
}

type SeedParty struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedLot struct {
	ID           string     `yaml:"id"`
	ProduceName  string     `yaml:"produceName"`
	Origin       string     `yaml:"origin"`
	PlantingDate string     `yaml:"plantingDate"`
	HarvestDate  string     `yaml:"harvestDate"`
	ItemCount    int        `yaml:"itemCount"`
	Farmer       SeedParty  `yaml:"farmer"`
	Steps        []SeedStep `yaml:"steps"`
	Feedback     []string   `yaml:"feedback"`
}

type SeedStep struct {
	Status   string    `yaml:"status"`
	Role     string    `yaml:"role"`
	Actor    SeedParty `yaml:"actor"`
	Location string    `yaml:"location"`
}

type SeedResult struct {
	Created  int
	Skipped  int
	Advanced int
	Feedback int
}

func ParseSeed(r io.Reader) (SeedFile, error) {
	var file SeedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return SeedFile{}, nil
		}
		return SeedFile{}, errs.Wrap(err, "decode seed yaml")
	}
	for i, item := range file.Lots {
		if strings.TrimSpace(item.ID) == "" {
			return SeedFile{}, fmt.Errorf("seed lot #%d: id is required", i+1)
		}
	}
	return file, nil
}

// ImportSeed replays each lot through the normal register and advance paths,
// so seeded lots have outbox events like any other. Lots that already exist
// are skipped whole.
func (s *Service) ImportSeed(ctx context.Context, file SeedFile) (SeedResult, error) {
	var result SeedResult
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.lots.seed"))

	for _, item := range file.Lots {
		farmer := ports.Actor{
			ID:          strings.TrimSpace(item.Farmer.ID),
			DisplayName: strings.TrimSpace(item.Farmer.Name),
			Role:        lot.RoleFarmer,
		}
		if farmer.ID == "" {
			farmer.ID = farmer.DisplayName
		}

		_, err := s.RegisterLot(ctx, farmer, RegisterLotInput{
			ID:           item.ID,
			ProduceName:  item.ProduceName,
			Origin:       item.Origin,
			PlantingDate: item.PlantingDate,
			HarvestDate:  item.HarvestDate,
			ItemCount:    item.ItemCount,
		})
		if errors.Is(err, ports.ErrLotExists) {
			result.Skipped++
			logging.Info(logCtx, "seed lot exists, skipped", slog.String("lot_id", item.ID))
			continue
		}
		if err != nil {
			return result, errs.Wrapf(err, "seed lot %s", item.ID)
		}
		result.Created++

		for _, step := range item.Steps {
			role, err := lot.ParseRole(step.Role)
			if err != nil {
				return result, errs.Wrapf(err, "seed lot %s", item.ID)
			}
			actor := ports.Actor{
				ID:          strings.TrimSpace(step.Actor.ID),
				DisplayName: strings.TrimSpace(step.Actor.Name),
				Role:        role,
			}
			if actor.DisplayName == "" {
				actor.DisplayName = actor.ID
			}
			if _, err := s.AdvanceLot(ctx, actor, AdvanceLotInput{
				LotID:    item.ID,
				Status:   step.Status,
				Location: step.Location,
			}); err != nil {
				return result, errs.Wrapf(err, "seed lot %s step %q", item.ID, step.Status)
			}
			result.Advanced++
		}

		for _, text := range item.Feedback {
			if _, err := s.SubmitFeedback(ctx, item.ID, text); err != nil {
				return result, errs.Wrapf(err, "seed lot %s feedback", item.ID)
			}
			result.Feedback++
		}
	}
	return result, nil
}
