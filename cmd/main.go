package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"emergency-escalation-service/internal/app"
	"emergency-escalation-service/internal/config"
	"emergency-escalation-service/internal/events"
	"emergency-escalation-service/internal/geo"
	httpapi "emergency-escalation-service/internal/http"
	"emergency-escalation-service/internal/models"
	"emergency-escalation-service/internal/notify"
	"emergency-escalation-service/internal/observability"
	"emergency-escalation-service/internal/service/detect"
	"emergency-escalation-service/internal/service/escalate"
	"emergency-escalation-service/internal/service/listener"
	"emergency-escalation-service/internal/service/recognizer"
	googlerec "emergency-escalation-service/internal/service/recognizer/google"
	"emergency-escalation-service/internal/service/recognizer/scripted"
	"emergency-escalation-service/internal/service/session"
	"emergency-escalation-service/internal/service/triage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		application.Logger.Fatal().Err(err).Msg("Application start failed")
	}
	logger := application.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka audit publisher, log-only unless enabled.
	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicDetection:  cfg.Kafka.TopicDetection,
		TopicEscalation: cfg.Kafka.TopicEscalation,
		Principal:       cfg.Kafka.Principal,
	})
	defer publisher.Close()

	// The host platform supplies real geolocation; standalone runs use
	// the configured fallback position directly.
	position := geo.Static{Pos: geo.Position{
		Latitude:  cfg.Notify.DefaultLatitude,
		Longitude: cfg.Notify.DefaultLongitude,
	}}

	notifyClient := notify.New(cfg.Notify.EndpointURL, cfg.Notify.Timeout, logger)

	coordinator := escalate.New(notifyClient, position, publisher, escalate.Config{
		DefaultPatientID:     cfg.Notify.DefaultPatientID,
		DefaultEmergencyType: cfg.Notify.DefaultEmergencyType,
		DefaultHospital:      cfg.Notify.DefaultHospital,
		DefaultLatitude:      cfg.Notify.DefaultLatitude,
		DefaultLongitude:     cfg.Notify.DefaultLongitude,
		HistoryMatchScore:    cfg.Escalate.HistoryMatchScore,
		AckDelay:             cfg.Escalate.AckDelay,
		Responder: escalate.ResponderDefaults{
			Doctor:      cfg.Escalate.Doctor,
			Nurse:       cfg.Escalate.Nurse,
			AmbulanceID: cfg.Escalate.AmbulanceID,
			ETAMinutes:  cfg.Escalate.ETAMinutes,
		},
	}, logger)

	if !supportedLanguage(cfg.Listener.LanguageCode) {
		logger.Warn().Str("language", cfg.Listener.LanguageCode).
			Strs("supported", detect.SupportedLanguages).
			Msg("Unrecognized language code, detection vocabulary is English/Hindi")
	}

	rec, recCloser, err := buildRecognizer(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.Listener.Provider).Msg("Recognizer init failed")
	}
	if recCloser != nil {
		defer recCloser()
	}

	l := listener.New(rec, detect.New(), listener.Config{
		Language:     cfg.Listener.LanguageCode,
		RestartDelay: cfg.Listener.RestartDelay,
	}, logger)

	flow := triage.New(session.NewManager(), coordinator, publisher, l, triage.Config{
		CountdownTicks:     cfg.Triage.CountdownSeconds,
		FallCountdownTicks: cfg.Triage.FallCountdownSeconds,
		TickInterval:       cfg.Triage.TickInterval,
	}, logger)
	fall := triage.NewFallMonitor(flow, logger)

	l.SetDetectionHandler(func(d models.EmergencyDetection) {
		if _, err := flow.HandleDetection(ctx, d); err != nil {
			logger.Debug().Err(err).Msg("Detection not actioned")
		}
	})
	flow.SetCountdownCallback(func(sessionID string, remaining int) {
		logger.Info().Str("sessionId", sessionID).Int("remaining", remaining).Msg("Confirmation countdown")
	})
	coordinator.SetAcknowledgmentCallback(func(s *session.Session) {
		if resp := s.Response(); resp != nil {
			logger.Info().
				Str("sessionId", s.ID()).
				Str("hospital", resp.Hospital).
				Str("ambulanceId", resp.AmbulanceID).
				Int("etaMinutes", resp.ETAMinutes).
				Msg("Help is on the way")
		}
	})

	obsServer := observability.NewServer(":" + cfg.Observability.MetricsPort)
	obsServer.Start()

	apiServer := &http.Server{
		Addr:    ":" + cfg.Service.HTTPPort,
		Handler: httpapi.NewRouter(application, flow, fall, l),
	}
	go func() {
		logger.Info().Str("addr", apiServer.Addr).Msg("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	if err := l.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Continuous listening failed to start")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutdown signal received")
	cancel()
	_ = l.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = obsServer.Shutdown(shutdownCtx)
	application.Shutdown()
}

func supportedLanguage(code string) bool {
	for _, l := range detect.SupportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

// buildRecognizer selects the recognizer backend.
func buildRecognizer(ctx context.Context, cfg *config.Configuration) (recognizer.Recognizer, func(), error) {
	switch cfg.Listener.Provider {
	case "google":
		r, err := googlerec.New(ctx, googlerec.Config{
			LanguageCode: cfg.Listener.LanguageCode,
			SampleRateHz: int32(cfg.Listener.SampleRateHz),
		})
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return scripted.New(scripted.DefaultScript, cfg.Listener.ScriptInterval), nil, nil
	}
}
