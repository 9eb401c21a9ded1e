package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"movefuzz/pkg/oracle"
	"movefuzz/pkg/solver"
	"movefuzz/pkg/tracer"
	"movefuzz/pkg/types"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// 命令行参数
var (
	tracePath  = flag.String("trace", "", "Execution trace file to analyze (required)")
	configPath = flag.String("config", "./config/analyzer.yaml", "Configuration file path")
	outputPath = flag.String("output", "", "Output file path (default: stdout)")
	format     = flag.String("format", "json", "Output format (json, text)")
	solve      = flag.Bool("solve", false, "Solve collected path constraints into seed values")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

// analyzerConfig 配置文件结构
type analyzerConfig struct {
	Oracles oracle.Config `yaml:"oracles"`
	Solver  solver.Config `yaml:"solver"`
}

// analysisReport 分析结果报告
type analysisReport struct {
	Trace        string          `json:"trace"`
	Verdict      string          `json:"verdict"`
	Findings     []types.Finding `json:"findings"`
	Constraints  int             `json:"constraints"`
	CoveredEdges int             `json:"covered_edges"`
	Seeds        []solver.Seed   `json:"seeds,omitempty"`
	Duration     string          `json:"duration"`
}

func main() {
	flag.Parse()

	// 设置日志
	if *verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	// 验证必需参数
	if *tracePath == "" {
		fmt.Fprintf(os.Stderr, "Error: Missing required parameters\n\n")
		flag.Usage()
		os.Exit(1)
	}

	// 加载配置
	config, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config file, using defaults: %v", err)
		config = getDefaultConfig()
	}

	// 读取trace
	tf, err := loadTraceFile(*tracePath)
	if err != nil {
		log.Fatalf("Failed to load trace: %v", err)
	}
	log.Printf("Loaded trace with %d events: %s", len(tf.Events), *tracePath)

	startTime := time.Now()

	// 创建分析器并回放trace
	analyzer := tracer.NewAnalyzer(oracle.BuildOracles(&config.Oracles))
	analyzer.SetVerbose(*verbose)

	aborted := false
	for idx, record := range tf.Events {
		ev, st, err := decodeEvent(record)
		if err != nil {
			log.Fatalf("Invalid trace event #%d: %v", idx, err)
		}
		if err := analyzer.HandleEvent(ev, st); err != nil {
			// 中止的trace不再继续回放，但已累积的结果仍然输出
			log.Printf("Trace aborted at event #%d: %v", idx, err)
			aborted = true
			break
		}
	}
	if !aborted {
		if err := analyzer.DoneExecution(decodeEffects(tf.Effects)); err != nil {
			log.Printf("Trace aborted at done: %v", err)
		}
	}

	report := &analysisReport{
		Trace:        *tracePath,
		Verdict:      analyzer.Verdict().String(),
		Findings:     analyzer.Findings(),
		Constraints:  len(analyzer.Constraints()),
		CoveredEdges: analyzer.Coverage().CoveredEdges(),
	}
	if report.Findings == nil {
		report.Findings = []types.Finding{}
	}

	// 可选：求解路径约束
	if *solve && len(analyzer.Constraints()) > 0 {
		report.Seeds = solveConstraints(config, analyzer)
	}

	report.Duration = time.Since(startTime).String()

	printStatistics(report)

	if err := saveReport(report, *outputPath, *format); err != nil {
		log.Fatalf("Failed to save report: %v", err)
	}
	log.Printf("Analysis completed in %s", report.Duration)
}

// loadConfig 加载配置文件
func loadConfig(path string) (*analyzerConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config analyzerConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	config.Oracles.MergeWithDefaults()
	config.Solver.MergeWithDefaults()
	return &config, nil
}

// getDefaultConfig 获取默认配置
func getDefaultConfig() *analyzerConfig {
	return &analyzerConfig{
		Oracles: *oracle.DefaultConfig(),
		Solver:  *solver.DefaultConfig(),
	}
}

// solveConstraints 求解路径约束生成种子值
func solveConstraints(config *analyzerConfig, analyzer *tracer.Analyzer) []solver.Seed {
	cs := solver.NewConstraintSolver(&config.Solver)
	defer cs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.Solver.GetTimeoutDuration())
	defer cancel()

	seeds, err := cs.Solve(ctx, analyzer.Constraints())
	if err != nil {
		log.Printf("Warning: Constraint solving failed: %v", err)
		return nil
	}
	log.Printf("Solved %d constraints into %d seeds", len(analyzer.Constraints()), len(seeds))
	return seeds
}

// printStatistics 打印统计信息
func printStatistics(report *analysisReport) {
	if !*verbose {
		return
	}

	fmt.Println("\n=== Analysis Results ===")
	fmt.Printf("Verdict: %s\n", report.Verdict)
	fmt.Printf("Findings: %d\n", len(report.Findings))
	for idx, f := range report.Findings {
		fmt.Printf("  #%d [%s] %s\n", idx+1, f.Severity, f.String())
	}
	fmt.Printf("Path Constraints: %d\n", report.Constraints)
	fmt.Printf("Covered Edges: %d\n", report.CoveredEdges)
	if len(report.Seeds) > 0 {
		fmt.Printf("Seeds: %d\n", len(report.Seeds))
	}
	fmt.Println("========================")
}

// saveReport 保存报告 (路径为空时输出到stdout)
func saveReport(report *analysisReport, path string, format string) error {
	var data []byte
	var err error

	switch format {
	case "json":
		data, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		data = append(data, '\n')

	case "text":
		data = []byte(formatReportAsText(report))

	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}

	// 确保目录存在
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	log.Printf("Report saved to: %s", path)
	return nil
}

// formatReportAsText 格式化报告为文本
func formatReportAsText(report *analysisReport) string {
	var sb strings.Builder

	sb.WriteString("Trace Analysis Report\n")
	sb.WriteString("=====================\n\n")
	sb.WriteString(fmt.Sprintf("Trace: %s\n", report.Trace))
	sb.WriteString(fmt.Sprintf("Verdict: %s\n", report.Verdict))
	sb.WriteString(fmt.Sprintf("Duration: %s\n\n", report.Duration))

	sb.WriteString(fmt.Sprintf("Findings (%d):\n", len(report.Findings)))
	for idx, f := range report.Findings {
		sb.WriteString(fmt.Sprintf("  #%d [%s] %s\n", idx+1, f.Severity, f.String()))
	}
	if len(report.Findings) == 0 {
		sb.WriteString("  (none)\n")
	}

	sb.WriteString(fmt.Sprintf("\nPath Constraints: %d\n", report.Constraints))
	sb.WriteString(fmt.Sprintf("Covered Edges: %d\n", report.CoveredEdges))

	if len(report.Seeds) > 0 {
		sb.WriteString(fmt.Sprintf("\nSeeds (%d):\n", len(report.Seeds)))
		for _, s := range report.Seeds {
			sb.WriteString(fmt.Sprintf("  %s = %s (%s)\n", s.Var, s.Value, s.Reason))
		}
	}

	return sb.String()
}
