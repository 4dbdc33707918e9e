package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"nludevops/internal/config"
	"nludevops/internal/db"
	"nludevops/internal/domain"
	"nludevops/internal/luis"
	"nludevops/internal/mqtt"
	"nludevops/internal/runs"
)

type testOptions struct {
	utterances   string
	output       string
	speechDir    string
	saveRun      bool
	publish      bool
	saveSettings bool
}

func newTestCmd(a *app) *cobra.Command {
	var opts testOptions
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send utterances to the prediction endpoint and write normalized results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTest(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.utterances, "utterances", "u", "", "JSON array of utterances to test")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write results here instead of stdout")
	cmd.Flags().StringVar(&opts.speechDir, "speech-directory", "", "directory holding the speechFile of each utterance")
	cmd.Flags().BoolVar(&opts.saveRun, "save-run", false, "persist the run to db_dsn")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "publish each outcome to the MQTT broker")
	cmd.Flags().BoolVarP(&opts.saveSettings, "save-appsettings", "a", false, "write the effective settings to appsettings.luis.json")
	return cmd
}

func runTest(ctx context.Context, a *app, opts testOptions) error {
	if opts.utterances == "" {
		return fmt.Errorf("must specify --utterances when using test")
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireLUIS(); err != nil {
		return err
	}
	logger := a.logger(cfg)

	f, err := os.Open(opts.utterances)
	if err != nil {
		return err
	}
	queries, err := runs.LoadUtterances(f)
	f.Close()
	if err != nil {
		return err
	}

	settings := cfg.LUISSettings()
	tester, err := luis.NewTestClient(settings, luis.NewClient(settings, cfg.LUISTimeout()), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var store runs.RunStore
	if opts.saveRun {
		if cfg.DBDSN == "" {
			return fmt.Errorf("--save-run requires db_dsn (NLU_DB_DSN)")
		}
		s, err := db.New(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer s.Close()
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate db: %w", err)
		}
		store = s
	}

	var publisher runs.OutcomePublisher
	if opts.publish {
		if cfg.MQTT.BrokerURL == "" {
			return fmt.Errorf("--publish requires mqtt.broker_url (NLU_MQTT_BROKER_URL)")
		}
		hub := mqtt.NewHub(mqtt.HubConfig{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, nil, logger)
		if err := hub.Start(ctx); err != nil {
			return fmt.Errorf("start mqtt hub: %w", err)
		}
		publisher = hub
	}

	var runner runs.Tester = tester
	if opts.speechDir != "" {
		runner = speechTester{client: tester, dir: opts.speechDir}
	}
	run, err := runs.New(runner, nil, store, publisher, logger).Run(ctx, queries)
	if err := reportRun(a, opts.output, run, err); err != nil {
		return err
	}
	if opts.saveSettings {
		if err := config.Save(a.v, "appsettings.luis.json"); err != nil {
			return err
		}
	}
	if n := run.FailedCount(); n > 0 {
		return fmt.Errorf("%d of %d utterances failed (run %s)", n, len(run.Outcomes), run.RunID)
	}
	return nil
}

// reportRun writes whatever the run produced before surfacing runErr, so a
// storage failure does not lose completed predictions.
func reportRun(a *app, path string, run domain.Run, runErr error) error {
	if runErr != nil && run.RunID == "" {
		return runErr
	}
	if err := writeResults(a, path, run); err != nil {
		return err
	}
	return runErr
}

// speechTester sends utterances that name a speechFile through speech
// recognition and everything else through text prediction.
type speechTester struct {
	client *luis.TestClient
	dir    string
}

func (s speechTester) Test(ctx context.Context, query json.RawMessage) (domain.Result, error) {
	var in struct {
		SpeechFile string `json:"speechFile"`
	}
	if json.Unmarshal(query, &in) != nil || in.SpeechFile == "" {
		return s.client.Test(ctx, query)
	}
	return s.client.TestSpeech(ctx, filepath.Join(s.dir, in.SpeechFile), query)
}

// writeResults emits one labeled utterance per input, null for failed ones.
func writeResults(a *app, path string, run domain.Run) error {
	results := make([]domain.Result, len(run.Outcomes))
	for i, o := range run.Outcomes {
		results[i] = o.Result
	}
	body, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	body = append(body, '\n')
	if path == "" {
		_, err = a.stdout.Write(body)
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
