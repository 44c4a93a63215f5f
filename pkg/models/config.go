package models

// Config is the full dmastore configuration file
type Config struct {
	Build       BuildConfig       `yaml:"build" mapstructure:"build"`
	Suppression SuppressionConfig `yaml:"suppression" mapstructure:"suppression"`
	Cubes       CubeConfig        `yaml:"cubes" mapstructure:"cubes"`
	Analysis    AnalysisConfig    `yaml:"analysis" mapstructure:"analysis"`
	Schema      Schema            `yaml:"schema" mapstructure:"schema"`
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	Storage     StorageConfig     `yaml:"storage" mapstructure:"storage"`
	History     HistoryConfig     `yaml:"history" mapstructure:"history"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// BuildConfig is the explicit input of a store build
type BuildConfig struct {
	FactsPath  string `yaml:"facts_path" mapstructure:"facts_path"`
	RulesPath  string `yaml:"rules_path" mapstructure:"rules_path"`
	GeoPath    string `yaml:"geo_path" mapstructure:"geo_path"`
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
	Overwrite  bool   `yaml:"overwrite" mapstructure:"overwrite"`
}

// SuppressionConfig configures the suppression analysis
type SuppressionConfig struct {
	CandidatesPath    string `yaml:"candidates_path" mapstructure:"candidates_path"`
	OutputPath        string `yaml:"output_path" mapstructure:"output_path"` // .csv or .xlsx, local or s3://
	TopN              int    `yaml:"top_n" mapstructure:"top_n"`
	RequireCandidates bool   `yaml:"require_candidates" mapstructure:"require_candidates"`
}

// CubeConfig holds the locations of the four directional cubes
type CubeConfig struct {
	WinMover     string `yaml:"win_mover" mapstructure:"win_mover"`
	LossMover    string `yaml:"loss_mover" mapstructure:"loss_mover"`
	WinNonMover  string `yaml:"win_non_mover" mapstructure:"win_non_mover"`
	LossNonMover string `yaml:"loss_non_mover" mapstructure:"loss_non_mover"`
}

// AnalysisConfig holds defaults for the store query helpers
type AnalysisConfig struct {
	StorePath  string  `yaml:"store_path" mapstructure:"store_path"` // defaults to build.output_path
	Window     int     `yaml:"window" mapstructure:"window"`
	ZThreshold float64 `yaml:"z_threshold" mapstructure:"z_threshold"`
}

// Schema names the source columns the pipeline reads
type Schema struct {
	Facts FactColumns      `yaml:"facts" mapstructure:"facts"`
	Rules RuleColumns      `yaml:"rules" mapstructure:"rules"`
	Geo   GeoColumns       `yaml:"geo" mapstructure:"geo"`
	Units SuppressionUnits `yaml:"units" mapstructure:"units"`
}

// FactColumns names the fact table columns
type FactColumns struct {
	Date        string `yaml:"date" mapstructure:"date"`
	DS          string `yaml:"ds" mapstructure:"ds"`
	MoverInd    string `yaml:"mover_ind" mapstructure:"mover_ind"`
	WinnerGroup string `yaml:"winner_group" mapstructure:"winner_group"`
	LoserGroup  string `yaml:"loser_group" mapstructure:"loser_group"`
	CensusBlock string `yaml:"census_block" mapstructure:"census_block"`
	Wins        string `yaml:"wins" mapstructure:"wins"`
}

// RuleColumns names the carrier naming rules columns
type RuleColumns struct {
	Group string `yaml:"group" mapstructure:"group"`
	Name  string `yaml:"name" mapstructure:"name"`
}

// GeoColumns names the geography crosswalk columns
type GeoColumns struct {
	CensusBlock string `yaml:"census_block" mapstructure:"census_block"`
	DMA         string `yaml:"dma" mapstructure:"dma"`
	DMAName     string `yaml:"dma_name" mapstructure:"dma_name"`
	State       string `yaml:"state" mapstructure:"state"`
}

// SuppressionUnits names the columns shared by the candidate file and the cubes
type SuppressionUnits struct {
	Date        string `yaml:"date" mapstructure:"date"`
	DMAName     string `yaml:"dma_name" mapstructure:"dma_name"`
	State       string `yaml:"state" mapstructure:"state"`
	CensusBlock string `yaml:"census_block" mapstructure:"census_block"`
}

// EngineConfig configures the embedded DuckDB engine
type EngineConfig struct {
	Database    string `yaml:"database" mapstructure:"database"` // empty for in-memory
	Threads     int    `yaml:"threads" mapstructure:"threads"`
	MemoryLimit string `yaml:"memory_limit" mapstructure:"memory_limit"`
	Timeout     string `yaml:"timeout" mapstructure:"timeout"` // e.g. "30m"
}

// StorageConfig configures remote report destinations
type StorageConfig struct {
	S3Region   string `yaml:"s3_region" mapstructure:"s3_region"`
	AWSProfile string `yaml:"aws_profile" mapstructure:"aws_profile"`
}

// HistoryConfig configures the run ledger
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// DefaultSchema returns the column names produced by the upstream exports
func DefaultSchema() Schema {
	return Schema{
		Facts: FactColumns{
			Date:        "the_date",
			DS:          "ds",
			MoverInd:    "mover_ind",
			WinnerGroup: "primary_sp_group",
			LoserGroup:  "secondary_sp_group",
			CensusBlock: "primary_geoid",
			Wins:        "adjusted_wins",
		},
		Rules: RuleColumns{
			Group: "sp_group",
			Name:  "sp_reporting_name",
		},
		Geo: GeoColumns{
			CensusBlock: "census_blockid",
			DMA:         "dma",
			DMAName:     "dma_name",
			State:       "state",
		},
		Units: SuppressionUnits{
			Date:        "the_date",
			DMAName:     "dma_name",
			State:       "state",
			CensusBlock: "census_blockid",
		},
	}
}

// WithDefaults fills empty column names from DefaultSchema
func (s Schema) WithDefaults() Schema {
	d := DefaultSchema()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Facts.Date, d.Facts.Date)
	fill(&s.Facts.DS, d.Facts.DS)
	fill(&s.Facts.MoverInd, d.Facts.MoverInd)
	fill(&s.Facts.WinnerGroup, d.Facts.WinnerGroup)
	fill(&s.Facts.LoserGroup, d.Facts.LoserGroup)
	fill(&s.Facts.CensusBlock, d.Facts.CensusBlock)
	fill(&s.Facts.Wins, d.Facts.Wins)
	fill(&s.Rules.Group, d.Rules.Group)
	fill(&s.Rules.Name, d.Rules.Name)
	fill(&s.Geo.CensusBlock, d.Geo.CensusBlock)
	fill(&s.Geo.DMA, d.Geo.DMA)
	fill(&s.Geo.DMAName, d.Geo.DMAName)
	fill(&s.Geo.State, d.Geo.State)
	fill(&s.Units.Date, d.Units.Date)
	fill(&s.Units.DMAName, d.Units.DMAName)
	fill(&s.Units.State, d.Units.State)
	fill(&s.Units.CensusBlock, d.Units.CensusBlock)
	return s
}
