package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Capstone-E1/hydrodose_console/config"
	"github.com/Capstone-E1/hydrodose_console/internal/api"
	"github.com/Capstone-E1/hydrodose_console/internal/gateway"
	consolehttp "github.com/Capstone-E1/hydrodose_console/internal/http"
	"github.com/Capstone-E1/hydrodose_console/internal/models"
	"github.com/Capstone-E1/hydrodose_console/internal/mqtt"
	"github.com/Capstone-E1/hydrodose_console/internal/orchestrator"
	"github.com/Capstone-E1/hydrodose_console/internal/poller"
	"github.com/Capstone-E1/hydrodose_console/internal/session"
	"github.com/Capstone-E1/hydrodose_console/internal/ws"
)

func main() {
	log.Println("💧 Starting HydroDose Operator Console...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found: %v", err)
	} else {
		log.Println("✅ Loaded .env file")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Loaded configuration: Console port=%s, Backend=%s",
		cfg.Server.Port, cfg.API.BaseURL)

	// Initialize the operator session store
	sessions := session.NewFileStore(cfg.Session.FilePath)
	if _, ok := sessions.Current(); ok {
		log.Println("🔑 Restored operator session from disk")
	}

	// Initialize the prediction API client and gateway
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, sessions)
	gw := gateway.New(client)
	log.Println("🔬 Prediction gateway ready")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	go wsHub.Run()
	log.Println("🔌 Started WebSocket hub")

	// Expired sessions drop connected UIs to the login page
	sessions.OnInvalidate(func() {
		wsHub.BroadcastSessionInvalidated()
	})

	// Prediction flows
	alumFlow := orchestrator.NewAlumFlow(gw)
	preLimeFlow := orchestrator.NewLimeFlow(gw, models.LimeStagePre)
	postLimeFlow := orchestrator.NewLimeFlow(gw, models.LimeStagePost)

	// Dashboard refresh loop
	dashboardPoller := poller.New(gw, cfg.Poller.Interval, cfg.Poller.DefaultLookback)
	dashboardPoller.OnUpdate(func(snapshot poller.Snapshot) {
		wsHub.BroadcastDashboard(snapshot)
	})
	dashboardPoller.Start()
	log.Printf("🕐 Started dashboard poller (every %s, lookback %s)",
		cfg.Poller.Interval, cfg.Poller.DefaultLookback)

	// Optional live raw-water sensor feed
	var mqttClient *mqtt.Client
	if cfg.MQTT.BrokerURL != "" {
		log.Println("📡 Attempting to connect to MQTT broker...")
		mqttClient = mqtt.NewClient(&mqtt.Config{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			Topic:       cfg.MQTT.TopicSensorRaw,
			KeepAlive:   cfg.MQTT.KeepAlive,
			PingTimeout: cfg.MQTT.PingTimeout,
		})
		mqttClient.SetDataHandler(func(reading mqtt.Reading) {
			wsHub.BroadcastFeedReading(reading)
		})
		mqttClient.SetErrorHandler(func(err error) {
			log.Printf("⚠️  Sensor feed error: %v", err)
		})

		if err := mqttClient.Connect(); err != nil {
			log.Printf("⚠️  Warning: Failed to connect to MQTT broker: %v", err)
			log.Println("📡 Continuing with HTTP polling only")
			mqttClient = nil
		} else if err := mqttClient.SubscribeToRawWater(); err != nil {
			log.Printf("⚠️  Warning: Failed to subscribe to sensor feed: %v", err)
			mqttClient.Disconnect()
			mqttClient = nil
		} else {
			log.Printf("📡 Live sensor feed connected - Broker: %s", cfg.MQTT.BrokerURL)
			defer mqttClient.Disconnect()
		}
	} else {
		log.Println("📡 MQTT broker not configured, relying on HTTP polling")
	}

	// Setup HTTP routes
	handlers := consolehttp.NewHandlers(gw, sessions, alumFlow, preLimeFlow, postLimeFlow, dashboardPoller, wsHub)
	router := consolehttp.SetupRoutes(handlers, wsHub)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Printf("🚀 Starting console server on port %s", cfg.Server.Port)
		log.Println("📡 API endpoints available:")
		log.Println("  POST /api/v1/auth/login - Operator login")
		log.Println("  POST /api/v1/auth/register - Operator registration")
		log.Println("  POST /api/v1/auth/logout - Operator logout")
		log.Println("  POST /api/v1/alum/submit - Classify sample and predict alum dose")
		log.Println("  POST /api/v1/alum/advanced - Complete an abnormal flow with flow readings")
		log.Println("  POST /api/v1/lime/{stage}/submit - Predict pre/post lime dose")
		log.Println("  GET /api/v1/dashboard - Dashboard snapshot")
		log.Println("  PUT /api/v1/dashboard/lookback - Switch dashboard window")
		log.Println("  GET /api/v1/reports/{capability}/pdf - Download prediction report")
		log.Println("  GET /api/v1/exports/history.xlsx - Export history workbook")
		log.Println("  WS /ws - WebSocket for live updates")
		log.Printf("🌐 Console running at http://localhost:%s", cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Console server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down console...")

	// Stop the dashboard poller
	dashboardPoller.Stop()

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Console forced to shutdown: %v", err)
	}

	log.Println("✅ Console shutdown complete")
}
