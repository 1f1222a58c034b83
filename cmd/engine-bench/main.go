// Command engine-bench drives the WSOLA stretcher and mixer pull path
// against synthetic silence for a fixed wall-clock duration and reports
// throughput, the same way the teacher's cmd/benchmark exercises BirdNET
// inference: initialize once, loop for N seconds, report a rate.
//
// Grounded on cmd/benchmark/benchmark.go (cobra.Command factory taking
// settings, a duration-bounded loop, a post-loop results table) and
// cmd/root.go (viper-backed persistent flags bound via
// viper.BindPFlags), adapted from an ML-inference benchmark to this
// engine's render hot path.
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LuoYun-Team/soundflow-engine/internal/engineconf"
	"github.com/LuoYun-Team/soundflow-engine/internal/mixer"
	"github.com/LuoYun-Team/soundflow-engine/internal/player"
	"github.com/LuoYun-Team/soundflow-engine/internal/provider"
	"github.com/LuoYun-Team/soundflow-engine/internal/wsola"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "engine-bench",
		Short: "Benchmark the soundflow engine's render and time-stretch paths",
	}
	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an engine config file")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
		_, err := engineconf.Load(configPath)
		return err
	}

	root.AddCommand(wsolaCommand(), mixerCommand())
	return root
}

func wsolaCommand() *cobra.Command {
	var preset string
	var seconds int
	var speed float64

	cmd := &cobra.Command{
		Use:   "wsola",
		Short: "Benchmark the WSOLA time-stretch kernel against silent audio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWSOLABenchmark(wsola.Preset(preset), speed, time.Duration(seconds)*time.Second)
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", "balanced", "quality preset (fast|balanced|highquality|audiophile)")
	cmd.Flags().IntVarP(&seconds, "seconds", "s", 10, "how long to run the benchmark for")
	cmd.Flags().Float64Var(&speed, "speed", 1.25, "playback speed passed to SetSpeed")
	return cmd
}

func runWSOLABenchmark(preset wsola.Preset, speed float64, duration time.Duration) error {
	const channels = 2
	st, err := wsola.NewFromPreset(channels, preset)
	if err != nil {
		return fmt.Errorf("failed to initialize stretcher: %w", err)
	}
	if err := st.SetSpeed(speed); err != nil {
		return fmt.Errorf("failed to set speed: %w", err)
	}

	inFrames := 4096
	input := make([]float32, inFrames*channels)
	output := make([]float32, inFrames*channels*2)

	fmt.Printf("⏳ Running WSOLA benchmark for %s (preset=%s, speed=%.2f)...\n", duration, preset, speed)
	start := time.Now()
	var blocksProcessed int
	var framesOut int64
	for time.Since(start) < duration {
		written, _, _ := st.Process(input, output)
		framesOut += int64(written / channels)
		blocksProcessed++
	}
	elapsed := time.Since(start)

	framesPerSecond := float64(framesOut) / elapsed.Seconds()
	realtimeFactor := framesPerSecond / 48000.0

	fmt.Printf("\nResults:\n")
	fmt.Printf("Blocks processed:  %d\n", blocksProcessed)
	fmt.Printf("Frames produced:   %d\n", framesOut)
	fmt.Printf("Throughput:        %.0f frames/sec (%.1fx real-time at 48kHz)\n", framesPerSecond, realtimeFactor)
	rating, description := rateThroughput(realtimeFactor)
	fmt.Printf("System rating:     %s, %s\n", rating, description)
	return nil
}

func mixerCommand() *cobra.Command {
	var seconds int
	var voices int

	cmd := &cobra.Command{
		Use:   "mixer",
		Short: "Benchmark Mixer.Pull with N silent voices mixed every block",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMixerBenchmark(voices, time.Duration(seconds)*time.Second)
		},
	}
	cmd.Flags().IntVarP(&seconds, "seconds", "s", 10, "how long to run the benchmark for")
	cmd.Flags().IntVarP(&voices, "voices", "n", 8, "number of silent voices to mix concurrently")
	return cmd
}

func runMixerBenchmark(voices int, duration time.Duration) error {
	m := mixer.New()
	for i := 0; i < voices; i++ {
		mp := provider.NewMemoryProvider(make([]float32, 48000*2), 48000, 2)
		voice := player.New(mp)
		voice.Play()
		m.AddComponent(fmt.Sprintf("voice-%d", i), voice)
	}

	const frameCount = 1024
	out := make([]float32, frameCount*2)

	fmt.Printf("⏳ Running mixer benchmark for %s (%d voices)...\n", duration, voices)
	start := time.Now()
	var blocks int64
	for time.Since(start) < duration {
		if err := m.Pull(frameCount, out); err != nil {
			return fmt.Errorf("mixer pull failed: %w", err)
		}
		blocks++
	}
	elapsed := time.Since(start)

	blocksPerSecond := float64(blocks) / elapsed.Seconds()
	realtimeBlocksPerSecond := 48000.0 / float64(frameCount)

	fmt.Printf("\nResults:\n")
	fmt.Printf("Blocks pulled:     %d\n", blocks)
	fmt.Printf("Throughput:        %.0f blocks/sec (needs %.1f blocks/sec for real-time)\n",
		blocksPerSecond, realtimeBlocksPerSecond)
	fmt.Printf("Headroom:          %.1fx real-time\n", blocksPerSecond/realtimeBlocksPerSecond)
	return nil
}

func rateThroughput(realtimeFactor float64) (rating, description string) {
	switch {
	case realtimeFactor < 1:
		return "❌ Too slow", "cannot keep up with real-time playback at this block size"
	case realtimeFactor < 2:
		return "⚠️ Marginal", "little headroom for additional tracks or effects"
	case realtimeFactor < 5:
		return "👍 Decent", "comfortable headroom for a handful of concurrent tracks"
	case realtimeFactor < 20:
		return "✨ Good", "plenty of headroom for a busy composition"
	default:
		return "🚀 Excellent", "stretching is not the bottleneck on this system"
	}
}
