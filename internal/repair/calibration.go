package repair

import (
	"regexp"
	"strings"

	"tracecore/pkg/domain"
)

// itemIDPattern extracts an item ID embedded in an upload file name.
var itemIDPattern = regexp.MustCompile(`item(_|)([0-9]+)_`)

// fileItemID returns the item ID embedded in a file name, or "".
func fileItemID(name string) string {
	match := itemIDPattern.FindStringSubmatch(name)
	if match == nil {
		return ""
	}
	return match[2]
}

// CalibrationPlate resurrects a calibration plate dropped by the upstream
// system. Some protocol runs generate a reference plate recorded only as a
// plan upload whose filename embeds the plate's item ID; the plate must be
// materialized, generated by the calibration run of the operation, and
// attached as source to the calibration measurement files.
type CalibrationPlate struct {
	// KeyPrefix selects the plan attribute holding the calibration upload.
	KeyPrefix string
	// Param and ParamPrefix identify calibration runs of the operation.
	Param       string
	ParamPrefix string

	plate domain.Entity
}

// FixPlan extracts the calibration upload from the plan attributes and
// materializes the plate it names.
func (c *CalibrationPlate) FixPlan(p *Pass, r *Rule, plan *domain.Plan) {
	filename := c.calibrationFileName(plan)
	if filename == "" {
		p.Log.Debug("no calibration plate found in plan associations", "plan", plan.ID)
		return
	}
	plateID := fileItemID(filename)
	if plateID == "" {
		return
	}
	p.Resolver.ResolveItem(p.Context(), plateID)
	c.plate = p.Trace.Item(plateID)
}

func (c *CalibrationPlate) calibrationFileName(plan *domain.Plan) string {
	for key, value := range plan.Attributes {
		if !strings.HasPrefix(key, c.KeyPrefix) {
			continue
		}
		if upload, ok := value.(map[string]any); ok {
			if name, ok := upload["upload_file_name"].(string); ok {
				return name
			}
		}
	}
	return ""
}

// FixOperation assigns a calibration run as the plate's generator.
func (c *CalibrationPlate) FixOperation(p *Pass, r *Rule, op *domain.Operation) {
	if c.plate == nil {
		return
	}
	value, found := parameterValue(op, c.Param)
	if found && strings.HasPrefix(value, c.ParamPrefix) {
		c.plate.SetGenerator(op)
	}
}

// FixFile attaches the plate as source of calibration files named after it,
// and prunes multi-source files down to the source generated by the file's
// own operation.
func (c *CalibrationPlate) FixFile(p *Pass, r *Rule, file domain.FileEntity) {
	gen := file.Generator()
	if gen == nil || !r.Matches(gen) {
		return
	}
	sources := file.Sources()
	switch {
	case len(sources) == 0:
		if c.plate == nil {
			return
		}
		if id := fileItemID(file.FileName()); id != "" && id == c.plate.EntityID() {
			file.AddSource(c.plate)
		}
	case len(sources) > 1:
		for _, source := range sources {
			if source.GeneratedBy(gen) {
				for _, id := range file.SourceIDs() {
					if id != source.EntityID() {
						file.RemoveSource(id)
					}
				}
				return
			}
		}
	}
}

// ProfileTagger records the lab and experiment profile on the plan when the
// upstream associations did not.
type ProfileTagger struct {
	Lab string
	// ChallengeProblem and ExperimentReference are the profile attribute
	// values, either may be empty.
	ChallengeProblem    string
	ExperimentReference string
}

func (t ProfileTagger) FixPlan(p *Pass, r *Rule, plan *domain.Plan) {
	if t.Lab != "" {
		plan.Attributes.Add(map[string]any{"lab": t.Lab})
	}
	if t.ChallengeProblem != "" && !plan.Attributes.Has("challenge_problem") {
		p.Log.Warn("adding challenge_problem plan attribute", "plan", plan.ID)
		plan.Attributes.Add(map[string]any{"challenge_problem": t.ChallengeProblem})
	}
	if t.ExperimentReference != "" && !plan.Attributes.Has("experiment_reference") {
		p.Log.Warn("adding experiment_reference plan attribute", "plan", plan.ID)
		plan.Attributes.Add(map[string]any{"experiment_reference": t.ExperimentReference})
	}
}
