package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/device/ports"
	"github.com/reglet-dev/thingpedia-registry/types"
)

// ActionExamples is the example set derived from one action.
type ActionExamples struct {
	Action   string
	Base     []entities.ExampleRecord
	Expanded []entities.ExampleRecord
	// Skipped is set when expansion failed; Base is still kept.
	Skipped error
}

// Records returns base and expanded examples in that order.
func (a ActionExamples) Records() []entities.ExampleRecord {
	out := make([]entities.ExampleRecord, 0, len(a.Base)+len(a.Expanded))
	out = append(out, a.Base...)
	return append(out, a.Expanded...)
}

// ExampleGenerator regenerates the example corpus of a descriptor's alias.
type ExampleGenerator struct {
	expander ports.Expander
	logger   *slog.Logger
}

// NewExampleGenerator creates a generator using expander for templates.
func NewExampleGenerator(expander ports.Expander, logger *slog.Logger) *ExampleGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExampleGenerator{expander: expander, logger: logger}
}

// Generate replaces every example stored for the alias schema with examples
// built from the descriptor's action templates. Descriptors without a
// global name have no examples. Triggers and queries are not used.
func (g *ExampleGenerator) Generate(
	ctx context.Context,
	schemas ports.SchemaStore,
	examples ports.ExampleStore,
	d *entities.Descriptor,
) ([]ActionExamples, error) {
	if d.GlobalName == "" {
		return nil, nil
	}

	alias, err := schemas.GetByKind(ctx, d.GlobalName)
	if err != nil {
		return nil, fmt.Errorf("load alias schema %s: %w", d.GlobalName, err)
	}

	if err := examples.DeleteBySchema(ctx, alias.ID); err != nil {
		return nil, fmt.Errorf("delete examples of %s: %w", d.GlobalName, err)
	}

	var results []ActionExamples
	var batch []entities.ExampleRecord
	for _, name := range entities.SortedNames(d.Actions) {
		ch := d.Actions[name]
		if ch.Examples == nil {
			continue
		}
		res := g.forAction(alias.ID, d.GlobalName, name, ch)
		if res.Skipped != nil {
			g.logger.Warn("failed to expand examples",
				"kind", d.GlobalName, "action", name, "error", res.Skipped)
		}
		results = append(results, res)
		batch = append(batch, res.Records()...)
	}

	if len(batch) == 0 {
		return results, nil
	}
	if err := examples.CreateMany(ctx, batch); err != nil {
		return nil, fmt.Errorf("insert examples of %s: %w", d.GlobalName, err)
	}
	g.logger.Debug("examples generated", "kind", d.GlobalName, "count", len(batch))
	return results, nil
}

func (g *ExampleGenerator) forAction(schemaID int64, alias, action string, ch *entities.Channel) ActionExamples {
	res := ActionExamples{Action: action}
	argNames := ch.ArgNames()

	argTypes := make(map[string]types.Type, len(argNames))
	for i, arg := range argNames {
		if i >= len(ch.Schema) {
			break
		}
		t, err := types.Parse(ch.Schema[i])
		if err != nil {
			res.Skipped = err
			return res
		}
		argTypes[arg] = t
	}

	base, err := entities.NewActionTarget(alias, action, argNames, argTypes, nil)
	if err != nil {
		res.Skipped = err
		return res
	}
	baseJSON, err := base.JSON()
	if err != nil {
		res.Skipped = err
		return res
	}
	for _, utterance := range ch.Examples {
		res.Base = append(res.Base, entities.ExampleRecord{
			SchemaID:   schemaID,
			IsBase:     true,
			Utterance:  utterance,
			TargetJSON: baseJSON,
		})
	}

	if g.expander == nil {
		return res
	}

	expansions, err := g.expander.Expand(ch.Examples, argTypes)
	if err != nil {
		res.Skipped = err
		return res
	}

	expanded := make([]entities.ExampleRecord, 0, len(expansions))
	for _, ex := range expansions {
		target, err := entities.NewActionTarget(alias, action, argNames, argTypes, ex.Assignments)
		if err != nil {
			res.Skipped = err
			return res
		}
		targetJSON, err := target.JSON()
		if err != nil {
			res.Skipped = err
			return res
		}
		expanded = append(expanded, entities.ExampleRecord{
			SchemaID:   schemaID,
			IsBase:     false,
			Utterance:  ex.Utterance,
			TargetJSON: targetJSON,
		})
	}
	res.Expanded = expanded
	return res
}
