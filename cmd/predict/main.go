package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Capstone-E1/hydrodose_console/config"
	"github.com/Capstone-E1/hydrodose_console/internal/api"
	"github.com/Capstone-E1/hydrodose_console/internal/gateway"
	"github.com/Capstone-E1/hydrodose_console/internal/models"
	"github.com/Capstone-E1/hydrodose_console/internal/orchestrator"
	"github.com/Capstone-E1/hydrodose_console/internal/report"
	"github.com/Capstone-E1/hydrodose_console/internal/session"
)

func main() {
	var (
		capability   = flag.String("capability", "alum", "Prediction to run (alum, pre-lime, post-lime)")
		ph           = flag.String("ph", "", "Raw water pH")
		turbidity    = flag.String("turbidity", "", "Raw water turbidity (NTU)")
		conductivity = flag.String("conductivity", "", "Raw water conductivity (uS/cm)")
		rawWaterFlow = flag.String("raw-water-flow", "", "Raw water flow (m3/h, abnormal alum samples)")
		dChamberFlow = flag.String("d-chamber-flow", "", "Distribution chamber flow (m3/h)")
		aeratorFlow  = flag.String("aerator-flow", "", "Aerator flow (m3/h)")
		email        = flag.String("email", "", "Operator email (logs in before predicting)")
		password     = flag.String("password", "", "Operator password")
		pdfPath      = flag.String("pdf", "", "Write a PDF report to this path")
	)
	flag.Parse()

	log.Println("💧 HydroDose Dose Predictor")
	log.Println("===========================")

	godotenv.Load()
	cfg := config.Load()

	sessions := session.NewFileStore(cfg.Session.FilePath)
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, sessions)
	gw := gateway.New(client)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	defer cancel()

	if *email != "" {
		sess, err := gw.Login(ctx, *email, *password)
		if err != nil {
			log.Fatalf("❌ Login failed: %v", err)
		}
		if err := sessions.Save(sess); err != nil {
			log.Fatalf("❌ Failed to save session: %v", err)
		}
		log.Printf("🔑 Logged in as %s", sess.User.Email)
	}

	switch *capability {
	case "alum":
		runAlum(ctx, gw, *ph, *turbidity, *conductivity, *rawWaterFlow, *dChamberFlow, *aeratorFlow, *pdfPath)
	case "pre-lime":
		runLime(ctx, gw, models.LimeStagePre, *ph, *turbidity, *conductivity, *pdfPath)
	case "post-lime":
		runLime(ctx, gw, models.LimeStagePost, *ph, *turbidity, *conductivity, *pdfPath)
	default:
		log.Fatalf("❌ Unknown capability %q. Use alum, pre-lime or post-lime", *capability)
	}
}

func runAlum(ctx context.Context, gw *gateway.Gateway, ph, turbidity, conductivity,
	rawWaterFlow, dChamberFlow, aeratorFlow, pdfPath string) {

	flow := orchestrator.NewAlumFlow(gw)
	if err := flow.Submit(ctx, ph, turbidity, conductivity); err != nil {
		log.Fatalf("❌ Prediction failed: %v", err)
	}

	snap := flow.Snapshot()
	if snap.Classification != nil {
		fmt.Printf("Classification:       %s (abnormal probability %.1f%%)\n",
			snap.Classification.Classification, snap.Classification.AbnormalProbability*100)
	}

	if snap.State == orchestrator.StateAwaitingAdvancedInput {
		if rawWaterFlow == "" || dChamberFlow == "" || aeratorFlow == "" {
			log.Fatal("❌ Sample classified ABNORMAL: re-run with -raw-water-flow, -d-chamber-flow and -aerator-flow")
		}
		if err := flow.SubmitAdvanced(ctx, rawWaterFlow, dChamberFlow, aeratorFlow); err != nil {
			log.Fatalf("❌ Advanced prediction failed: %v", err)
		}
		snap = flow.Snapshot()
	}

	switch {
	case snap.Advanced != nil:
		fmt.Printf("Predicted alum dose:  %.2f ppm (range %.2f - %.2f)\n",
			snap.Advanced.PredictedAlumDose, snap.Advanced.DoseRange.Min, snap.Advanced.DoseRange.Max)
	case snap.Basic != nil:
		fmt.Printf("Recommended dose:     %.2f ppm\n", snap.Basic.RecommendedDose)
		fmt.Printf("Settled turbidity:    %.3f NTU (CI %.3f - %.3f)\n",
			snap.Basic.PredictedSettledTurbidity,
			snap.Basic.ConfidenceInterval.Lower, snap.Basic.ConfidenceInterval.Upper)
	}

	if pdfPath != "" {
		doc := report.BuildAlumReport(snap.Classification, snap.Basic, snap.Advanced, nil, time.Now())
		doc.Chart = snap.Chart
		writePDF(doc, pdfPath)
	}
}

func runLime(ctx context.Context, gw *gateway.Gateway, stage models.LimeStage,
	ph, turbidity, conductivity, pdfPath string) {

	flow := orchestrator.NewLimeFlow(gw, stage)
	if err := flow.Submit(ctx, ph, turbidity, conductivity); err != nil {
		log.Fatalf("❌ Prediction failed: %v", err)
	}

	snap := flow.Snapshot()
	prediction := snap.Prediction
	fmt.Printf("Recommended dose:     %.2f ppm\n", prediction.RecommendedDose)
	fmt.Printf("Predicted pH:         %.2f (interval %.2f - %.2f)\n",
		prediction.PredictedPH,
		prediction.ConformalInterval.Lower, prediction.ConformalInterval.Upper)
	if prediction.IsSpike {
		band := stage.SafeBand()
		fmt.Printf("⚠️  pH SPIKE: outside safe band %.1f - %.1f\n", band.Lower, band.Upper)
	}

	if pdfPath != "" {
		doc := report.BuildLimeReport(*prediction, nil, time.Now())
		doc.Chart = snap.Chart
		writePDF(doc, pdfPath)
	}
}

func writePDF(doc report.Report, path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("❌ Failed to create %s: %v", path, err)
	}
	defer f.Close()

	if err := doc.Generate(f); err != nil {
		log.Fatalf("❌ Failed to render report: %v", err)
	}
	log.Printf("📄 Report written to %s", path)
}
