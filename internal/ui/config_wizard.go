package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"dmastore/pkg/models"
)

// ErrWizardCancelled is returned when the user aborts the wizard
var ErrWizardCancelled = stderrors.New("configuration cancelled")

// Asker runs survey prompts
type Asker interface {
	Ask(qs []*survey.Question, response interface{}) error
	AskOne(p survey.Prompt, response interface{}) error
}

type surveyAsker struct{}

func (surveyAsker) Ask(qs []*survey.Question, response interface{}) error {
	return survey.Ask(qs, response)
}

func (surveyAsker) AskOne(p survey.Prompt, response interface{}) error {
	return survey.AskOne(p, response)
}

// ConfigWizard provides an interactive configuration setup
type ConfigWizard struct {
	asker       Asker
	out         io.Writer
	currentStep int
	totalSteps  int
}

// NewConfigWizard creates a wizard using terminal prompts
func NewConfigWizard(out io.Writer) *ConfigWizard {
	return NewConfigWizardWithAsker(out, surveyAsker{})
}

// NewConfigWizardWithAsker creates a wizard with a custom prompt backend
func NewConfigWizardWithAsker(out io.Writer, asker Asker) *ConfigWizard {
	return &ConfigWizard{
		asker:       asker,
		out:         out,
		currentStep: 1,
		totalSteps:  4,
	}
}

type buildAnswers struct {
	Facts     string
	Rules     string
	Geo       string
	Output    string
	Overwrite bool
}

type suppressionAnswers struct {
	Candidates   string
	WinMover     string
	LossMover    string
	WinNonMover  string
	LossNonMover string
	Report       string
}

type engineAnswers struct {
	Threads     string
	MemoryLimit string
	Timeout     string
}

// Run executes the wizard starting from base, which supplies defaults
func (w *ConfigWizard) Run(base models.Config) (*models.Config, error) {
	NewPrinter(w.out, false).Header("dmastore - Configuration Setup")

	config := base
	steps := []func(*models.Config) error{
		w.configureBuildStep,
		w.configureSuppressionStep,
		w.configureEngineStep,
		w.reviewConfiguration,
	}
	for _, step := range steps {
		if err := step(&config); err != nil {
			if stderrors.Is(err, terminal.InterruptErr) {
				return nil, ErrWizardCancelled
			}
			return nil, err
		}
	}

	return &config, nil
}

func (w *ConfigWizard) configureBuildStep(config *models.Config) error {
	w.showProgress("Store Build Inputs")

	questions := []*survey.Question{
		{
			Name: "facts",
			Prompt: &survey.Input{
				Message: "Raw win/loss facts:",
				Default: config.Build.FactsPath,
				Help:    "Directory, file or glob of parquet exports",
			},
			Validate: survey.Required,
		},
		{
			Name: "rules",
			Prompt: &survey.Input{
				Message: "Carrier naming rules:",
				Default: config.Build.RulesPath,
				Help:    "Parquet or CSV with the group to reporting name mapping",
			},
			Validate: survey.Required,
		},
		{
			Name: "geo",
			Prompt: &survey.Input{
				Message: "Census block to DMA crosswalk:",
				Default: config.Build.GeoPath,
			},
			Validate: survey.Required,
		},
		{
			Name: "output",
			Prompt: &survey.Input{
				Message: "Store output directory:",
				Default: config.Build.OutputPath,
				Help:    "Local directory; s3:// outputs are not supported",
			},
			Validate: survey.Required,
		},
		{
			Name: "overwrite",
			Prompt: &survey.Confirm{
				Message: "Replace the store on each build?",
				Default: config.Build.Overwrite,
			},
		},
	}

	var answers buildAnswers
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	config.Build = models.BuildConfig{
		FactsPath:  answers.Facts,
		RulesPath:  answers.Rules,
		GeoPath:    answers.Geo,
		OutputPath: answers.Output,
		Overwrite:  answers.Overwrite,
	}

	w.currentStep++
	return nil
}

func (w *ConfigWizard) configureSuppressionStep(config *models.Config) error {
	w.showProgress("Suppression Inputs")

	enabled := config.Suppression.CandidatesPath != ""
	if err := w.asker.AskOne(&survey.Confirm{
		Message: "Configure the suppression analysis?",
		Default: enabled,
	}, &enabled); err != nil {
		return err
	}
	if !enabled {
		w.currentStep++
		return nil
	}

	input := func(name, message, def string) *survey.Question {
		return &survey.Question{
			Name:     name,
			Prompt:   &survey.Input{Message: message, Default: def},
			Validate: survey.Required,
		}
	}
	questions := []*survey.Question{
		input("candidates", "Suppression candidates:", config.Suppression.CandidatesPath),
		input("winmover", "Win mover cube:", config.Cubes.WinMover),
		input("lossmover", "Loss mover cube:", config.Cubes.LossMover),
		input("winnonmover", "Win non-mover cube:", config.Cubes.WinNonMover),
		input("lossnonmover", "Loss non-mover cube:", config.Cubes.LossNonMover),
		{
			Name: "report",
			Prompt: &survey.Input{
				Message: "Report destination (optional):",
				Default: config.Suppression.OutputPath,
				Help:    ".csv, .xlsx or .json; local path or s3://bucket/key",
			},
		},
	}

	var answers suppressionAnswers
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	config.Suppression.CandidatesPath = answers.Candidates
	config.Suppression.OutputPath = answers.Report
	config.Cubes = models.CubeConfig{
		WinMover:     answers.WinMover,
		LossMover:    answers.LossMover,
		WinNonMover:  answers.WinNonMover,
		LossNonMover: answers.LossNonMover,
	}

	w.currentStep++
	return nil
}

func (w *ConfigWizard) configureEngineStep(config *models.Config) error {
	w.showProgress("Engine Settings")

	threads := ""
	if config.Engine.Threads > 0 {
		threads = strconv.Itoa(config.Engine.Threads)
	}

	questions := []*survey.Question{
		{
			Name: "threads",
			Prompt: &survey.Input{
				Message: "Engine threads (empty for all cores):",
				Default: threads,
			},
			Validate: func(ans interface{}) error {
				s, _ := ans.(string)
				if s == "" {
					return nil
				}
				if n, err := strconv.Atoi(s); err != nil || n < 1 {
					return fmt.Errorf("threads must be a positive integer")
				}
				return nil
			},
		},
		{
			Name: "memorylimit",
			Prompt: &survey.Input{
				Message: "Engine memory limit (e.g. 8GB, empty for default):",
				Default: config.Engine.MemoryLimit,
			},
		},
		{
			Name: "timeout",
			Prompt: &survey.Input{
				Message: "Statement timeout:",
				Default: config.Engine.Timeout,
			},
		},
	}

	var answers engineAnswers
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	config.Engine.Threads = 0
	if answers.Threads != "" {
		config.Engine.Threads, _ = strconv.Atoi(answers.Threads)
	}
	config.Engine.MemoryLimit = answers.MemoryLimit
	config.Engine.Timeout = answers.Timeout

	w.currentStep++
	return nil
}

func (w *ConfigWizard) reviewConfiguration(config *models.Config) error {
	w.showProgress("Review Configuration")

	p := NewPrinter(w.out, false)
	p.Section("Store build")
	p.KeyValue("Facts", config.Build.FactsPath)
	p.KeyValue("Rules", config.Build.RulesPath)
	p.KeyValue("Geo", config.Build.GeoPath)
	p.KeyValue("Output", config.Build.OutputPath)
	p.KeyValue("Overwrite", config.Build.Overwrite)

	if config.Suppression.CandidatesPath != "" {
		p.Section("Suppression")
		p.KeyValue("Candidates", config.Suppression.CandidatesPath)
		p.KeyValue("Report", config.Suppression.OutputPath)
	}

	confirm := false
	if err := w.asker.AskOne(&survey.Confirm{
		Message: "Save this configuration?",
		Default: true,
	}, &confirm); err != nil {
		return err
	}
	if !confirm {
		return ErrWizardCancelled
	}

	return nil
}

func (w *ConfigWizard) showProgress(step string) {
	fmt.Fprintf(w.out, "\n%s [Step %d/%d] %s\n\n",
		ColorProgress("►"),
		w.currentStep,
		w.totalSteps,
		ColorBold(step),
	)
}
