package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicegate/voicegate/internal/api/handlers"
	"github.com/voicegate/voicegate/internal/api/middleware"
	"github.com/voicegate/voicegate/internal/config"
	"github.com/voicegate/voicegate/internal/speakers"
	"github.com/voicegate/voicegate/internal/synth"

	enginepkg "github.com/voicegate/voicegate/internal/engine"
)

type Router struct {
	mux        *chi.Mux
	cfg        *config.Config
	eng        enginepkg.Engine
	dispatcher *synth.Dispatcher
	registry   *speakers.Registry
	promReg    *prometheus.Registry
	log        *slog.Logger
}

func NewRouter(cfg *config.Config, eng enginepkg.Engine, dispatcher *synth.Dispatcher,
	registry *speakers.Registry, promReg *prometheus.Registry, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		mux:        chi.NewRouter(),
		cfg:        cfg,
		eng:        eng,
		dispatcher: dispatcher,
		registry:   registry,
		promReg:    promReg,
		log:        log,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORS.Origins))

	rl := middleware.NewRateLimiter(float64(rt.cfg.Rate.RPS), rt.cfg.Rate.Burst)
	r.Use(rl.Limit)

	// Banner and health endpoints
	health := handlers.NewHealthHandler(rt.eng, rt.registry)
	r.Get("/", health.Root)
	r.Get("/healthz", health.Healthz)

	if rt.promReg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(rt.promReg, promhttp.HandlerOpts{}))
	}

	// Synthesized artifacts
	fs := http.StripPrefix("/audio/", http.FileServer(http.Dir(rt.cfg.Audio.OutputDir)))
	r.Get("/audio/*", fs.ServeHTTP)

	ttsH := handlers.NewTTSHandler(rt.dispatcher)
	streamH := handlers.NewStreamHandler(rt.dispatcher, rt.log)
	speakerH := handlers.NewSpeakerHandler(rt.registry)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", health.Status)
		r.Get("/speakers", speakerH.List)

		r.Route("/tts", func(r chi.Router) {
			r.Post("/basic", ttsH.Basic)
			r.Post("/zero-shot", ttsH.ZeroShot)
			r.Post("/cross-lingual", ttsH.CrossLingual)
			r.Post("/instruct", ttsH.Instruct)
			r.Post("/ultimate", ttsH.Ultimate)
			r.Post("/ultimate-upload", ttsH.UltimateUpload)
			r.Post("/stream", ttsH.Stream)
			r.Post("/sse", streamH.SSE)
			r.Get("/ws", streamH.WS)
		})

		r.Route("/speakers/custom", func(r chi.Router) {
			r.Post("/", speakerH.CreateCustom)
			r.Get("/", speakerH.ListCustom)
			r.Delete("/{id}", speakerH.DeleteCustom)
		})
	})

	return r
}
