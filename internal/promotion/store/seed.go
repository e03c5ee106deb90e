package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"promotions/internal/promotion/models"
	"promotions/pkg/platform/sentinel"
)

// seedFile is the YAML layout of a promotion seed file:
//
//	promotions:
//	  - id: three-for-two
//	    title: 3x2 shirts
//	    priority: 10
//	    if:
//	      product: {id: "0001", quantity: 3}
//	    then:
//	      product: {id: "0001", quantity: 1, discount: {rate: 100, isPercentage: true}}
type seedFile struct {
	Promotions []seedPromotion `yaml:"promotions"`
}

type seedPromotion struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Class    string `yaml:"class"`
	Active   *bool  `yaml:"active"`
	Priority int    `yaml:"priority"`
	If       any    `yaml:"if"`
	Then     any    `yaml:"then"`
}

// Writer is the part of a promotion store the seeder needs.
type Writer interface {
	Create(ctx context.Context, promo *models.Promotion) error
}

// LoadSeedFile reads promotions from a YAML file.
func LoadSeedFile(path string, now time.Time) ([]*models.Promotion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeed(f, now)
}

// LoadSeed decodes a YAML seed document. Trees are converted to their JSON form.
func LoadSeed(r io.Reader, now time.Time) ([]*models.Promotion, error) {
	var doc seedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	out := make([]*models.Promotion, 0, len(doc.Promotions))
	for i, sp := range doc.Promotions {
		if sp.ID == "" {
			return nil, fmt.Errorf("seed promotion %d: id is required", i)
		}
		if sp.If == nil {
			return nil, fmt.Errorf("seed promotion %s: if is required", sp.ID)
		}
		cond, err := json.Marshal(sp.If)
		if err != nil {
			return nil, fmt.Errorf("seed promotion %s: encode if: %w", sp.ID, err)
		}
		promo := &models.Promotion{
			ID:        sp.ID,
			Title:     sp.Title,
			Class:     sp.Class,
			Active:    sp.Active == nil || *sp.Active,
			Priority:  sp.Priority,
			If:        cond,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if promo.Class == "" {
			promo.Class = models.ClassDefault
		}
		if sp.Then != nil {
			if promo.Then, err = json.Marshal(sp.Then); err != nil {
				return nil, fmt.Errorf("seed promotion %s: encode then: %w", sp.ID, err)
			}
		}
		out = append(out, promo)
	}
	return out, nil
}

// Seed creates every promotion that does not exist yet and returns how many
// were created.
func Seed(ctx context.Context, w Writer, promos []*models.Promotion) (int, error) {
	created := 0
	for _, p := range promos {
		err := w.Create(ctx, p)
		switch {
		case err == nil:
			created++
		case errors.Is(err, sentinel.ErrConflict):
		default:
			return created, fmt.Errorf("seed promotion %s: %w", p.ID, err)
		}
	}
	return created, nil
}
