package repair

// The default battery encodes the repair knowledge for the protocol
// library in use: which operation types each capability applies to and the
// lookup tables they consult. Rule order matters because attribute
// propagation reads values earlier rules wrote; rules are listed in the
// order their operations commonly occur in plans.

// mediaSamples maps declared media type names to media sample IDs.
var mediaSamples = map[string]string{
	"YPAD":               "11767",
	"Synthetic_Complete": "11769",
	"SC":                 "11769",
	"SC_Sorbitol":        "22798",
	"SC_Glycerol_EtOH":   "22799",
}

// Instrument configurations attached by the measurement taggers.
const instrumentsURL = "agave://data-sd2e-community/biofab/instruments"

var (
	accuriChannels = []string{"FL1-A", "FL4-A", "FSC-A", "SSC-A"}

	flowMeasurement = map[string]any{
		"measurement_type":         "FLOW",
		"instrument_configuration": instrumentsURL + "/accuri/5539/10202018/cytometer_configuration.json",
		"channels":                 accuriChannels,
	}
	plateReaderMeasurement = map[string]any{
		"measurement_type":         "PLATE_READER",
		"instrument_configuration": instrumentsURL + "/synergy_ht/216503/03132018/platereader_configuration.json",
	}
)

// profiles maps the CLI profile tag to the plan attributes it implies.
var profiles = map[string]ProfileTagger{
	"yg": {ChallengeProblem: "YEAST_GATES", ExperimentReference: "Yeast-Gates"},
	"nc": {ChallengeProblem: "NOVEL_CHASSIS", ExperimentReference: "NovelChassis-NAND-Gate"},
	"ps": {ChallengeProblem: "PROTEIN_DESIGN"},
}

// ProfileRule tags plans with the lab name and the attributes implied by
// the profile tag. Unknown profiles tag the lab only.
func ProfileRule(lab, profile string) *Rule {
	tagger := profiles[profile]
	tagger.Lab = lab
	return &Rule{
		Name:  "profile",
		Plans: []PlanFix{tagger},
	}
}

// DefaultRules returns the protocol repair battery in application order.
// The battery is freshly constructed so stateful capabilities never leak
// between builds.
func DefaultRules() []*Rule {
	// Shared calibration-plate state for the plate reader rule: the plan
	// fix materializes the plate, the operation fix assigns its generator,
	// the file fix binds calibration files.
	calibration := &CalibrationPlate{
		KeyPrefix:   "Calibration_CAL_",
		Param:       "Type of Measurement(s)",
		ParamPrefix: "CAL_",
	}

	return []*Rule{
		{
			Name:  "yeast-mating",
			Ops:   []string{"Yeast Mating"},
			Items: []ItemFix{AllInputsItemSource{}},
		},
		{
			Name:  "yeast-overnight-suspension",
			Ops:   []string{"Yeast Overnight Suspension"},
			Items: []ItemFix{MediaLookup{Input: "Type of Media", Samples: mediaSamples}},
		},
		{
			Name: "resuspension-outgrowth",
			Ops:  []string{"2. Resuspension and Outgrowth"},
			Parts: []PartFix{
				SampleMatchedInputSource{Input: "Yeast Plate"},
				SourceColonyTagger{},
				MediaLookup{Input: "Type of Media", Samples: mediaSamples},
				IGEMWellAttributes{},
			},
			Files: []FileFix{SourceFileGenerator{Standard: "IGEM_protocol"}},
		},
		{
			Name: "synch-by-od",
			Ops:  []string{"3. Synchronize by OD"},
			Operations: []OperationFix{
				MeasurementTagger{Attributes: plateReaderMeasurement},
			},
			Parts: []PartFix{
				MediaLookup{Input: "Type of Media", Samples: mediaSamples},
				ReplicateLayoutRouter{
					Replicates: "Biological Replicates",
					Plates:     "Yeast Plate",
					TargetOD:   "Final OD",
				},
				AttributeCopier{Key: "media"},
			},
			Files: []FileFix{FileGeneratorFinder{}},
		},
		{
			Name: "measure-od-gfp",
			Ops:  []string{"4. Measure OD and GFP"},
			Operations: []OperationFix{
				MeasurementTagger{Attributes: plateReaderMeasurement},
			},
			Collections: []CollectionFix{
				SourceUploadFiles{Keys: []string{"16hr_od", "16hr_gfp"}},
			},
			Parts: []PartFix{
				PassthroughRouter{},
				AttributeCopier{Key: "media"},
			},
			Files: []FileFix{FileGeneratorFinder{}},
		},
		{
			Name: "plate-reader-measurement",
			Ops:  []string{"Plate Reader Measurement"},
			Operations: []OperationFix{
				MeasurementTagger{Attributes: plateReaderMeasurement},
				calibration,
			},
			Plans: []PlanFix{calibration},
			Collections: []CollectionFix{
				ParameterGuard{
					Input:  "Type of Measurement(s)",
					Prefix: "CAL_",
					Fix:    NamedInputCollectionSource{Input: "96 Deep Well Plate"},
				},
			},
			Parts: []PartFix{PassthroughRouter{}, IGEMWellAttributes{}},
			Files: []FileFix{FileGeneratorFinder{}, calibration},
		},
		{
			Name: "nc-inoculation-media",
			Ops:  []string{"NC_Inoculation & Media"},
			Operations: []OperationFix{
				DesignDocBinder{Key: "experimental_design_document"},
			},
			Parts: []PartFix{MatrixAttributes{}},
		},
		{
			Name:        "nc-large-volume-induction",
			Ops:         []string{"NC_Large_Volume_Induction"},
			Collections: []CollectionFix{NamedInputCollectionSource{Input: "96 Well Plate in"}},
			Parts: []PartFix{
				TransferCoordRouter{Key: "deep_well_transfer_coords"},
				MatrixAttributes{},
			},
		},
		{
			Name:        "nc-sampling",
			Ops:         []string{"NC_Sampling"},
			Collections: []CollectionFix{AllInputsCollectionSource{}},
			Parts: []PartFix{
				QuadrantFoldRouter{Key: "deep_well_transfer_coords"},
				MatrixAttributes{},
			},
		},
		{
			Name:        "nc-recovery",
			Ops:         []string{"NC_Recovery"},
			Collections: []CollectionFix{NamedInputCollectionSource{Input: "96 Deep Well Plate in"}},
			Parts:       []PartFix{PassthroughRouter{}, MatrixAttributes{}},
		},
		{
			Name: "nc-plate-reader-induction",
			Ops:  []string{"NC_Plate_Reader_Induction"},
			Collections: []CollectionFix{
				NamedInputCollectionSource{Input: "96 Deep Well plate"},
				TimeseriesFileBinder{Key: "timeseries_filename"},
			},
			Parts: []PartFix{PassthroughRouter{}, MatrixAttributes{}},
		},
		{
			Name: "flow-cytometry-96-well",
			Ops:  []string{"Flow Cytometry 96 well", "Flow Cytometry 96 well (old)"},
			Operations: []OperationFix{
				MeasurementTagger{Attributes: flowMeasurement},
			},
			Files: []FileFix{
				FileGeneratorFinder{},
				&BeadSourceBinder{Input: "calibration beads"},
				&PlateSourceBinder{Input: "96 well plate"},
			},
		},
		{
			Name: "cytometer-bead-calibration",
			Ops:  []string{"Cytometer Bead Calibration"},
			Operations: []OperationFix{
				MeasurementTagger{Attributes: flowMeasurement},
			},
			Files: []FileFix{
				FileGeneratorFinder{},
				&BeadSourceBinder{Input: "calibration beads"},
			},
		},
	}
}
