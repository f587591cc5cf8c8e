package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/azure/mentions-monitor/internal/ai"
	"github.com/azure/mentions-monitor/internal/config"
	"github.com/azure/mentions-monitor/internal/discovery"
	"github.com/azure/mentions-monitor/internal/sources"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	limit := flag.Int("limit", 3, "sample candidates printed per provider")
	flag.Parse()

	keywords := flag.Args()
	if len(keywords) == 0 {
		keywords = []string{"kubernetes"}
	}

	fmt.Println("🔍 Mentions Monitor - Discovery Provider Test")
	fmt.Println("=============================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// discovery needs no database
	if os.Getenv("STORE_DRIVER") == "" {
		os.Setenv("STORE_DRIVER", "memory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("\n📡 Keywords: %s\n", strings.Join(keywords, ", "))
	fmt.Println(strings.Repeat("-", 45))

	providers := sources.FromConfig(cfg)
	if len(providers) == 0 {
		fmt.Println("⚠️  No discovery providers enabled (check DISCOVERY_PROVIDERS and API keys)")
		return
	}
	for _, provider := range providers {
		testProvider(ctx, provider, keywords, *limit)
	}

	fmt.Println("\n🔗 Merged and scored (keyword scorer)...")
	candidates, err := discovery.NewMultiFinder(providers...).Find(ctx, keywords)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return
	}
	qualifying := 0
	for _, candidate := range candidates {
		relevance, _ := ai.KeywordScorer{}.Score(ctx, candidate, keywords)
		if relevance.Score >= cfg.RelevanceMinScore {
			qualifying++
		}
	}
	fmt.Printf("✅ %d unique candidates, %d at or above %.2f\n", len(candidates), qualifying, cfg.RelevanceMinScore)
}

func testProvider(ctx context.Context, provider sources.Source, keywords []string, limit int) {
	fmt.Printf("🔸 Testing %s... ", provider.GetName())

	candidates, err := provider.Find(ctx, keywords)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return
	}

	fmt.Printf("✅ SUCCESS (%d candidates)\n", len(candidates))
	for i, candidate := range candidates {
		if i >= limit {
			break
		}
		fmt.Printf("   📝 [%s] %s - %s\n", candidate.SourceType, candidate.Title, candidate.URL)
	}
}
