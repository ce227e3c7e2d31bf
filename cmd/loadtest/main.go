// Команда loadtest нагружает SellSocks по gRPC: создаёт одну партию носков
// и конкурентно списывает из неё, затем сверяет остаток. Списано может быть
// не больше, чем было заведено.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/sockstore/internal/service/grpc"
)

const (
	methodAdd  = "AddSocks"
	methodSell = "SellSocks"
	methodGet  = "GetSocks"
)

type loadMode string

const (
	// Продажи без ключа идемпотентности.
	modeSell loadMode = "sell"
	// У каждой продажи свой ключ.
	modeSellIdempotent loadMode = "sell-idempotent"
	// Каждая продажа отправляется дважды с одним ключом,
	// второй ответ обязан совпасть с первым.
	modeSellReplay loadMode = "sell-replay"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	stock       int
	units       int
	color       string
	size        string
	cotton      int
	outputPath  string
}

// sockClient — часть grpcsvc.Client, нужная нагрузке.
type sockClient interface {
	AddSocks(ctx context.Context, req *grpcsvc.AddSocksRequest, opts ...grpc.CallOption) (*grpcsvc.SockResponse, error)
	SellSocks(ctx context.Context, req *grpcsvc.SellSocksRequest, opts ...grpc.CallOption) (*grpcsvc.SellSocksResponse, error)
	GetSocks(ctx context.Context, req *grpcsvc.GetSocksRequest, opts ...grpc.CallOption) (*grpcsvc.SockResponse, error)
}

var _ sockClient = (*grpcsvc.Client)(nil)

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total sells in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 30s, 5m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 8, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modeSell), "load mode: sell | sell-idempotent | sell-replay")
	fs.IntVar(&cfg.stock, "stock", 200, "quantity of the seeded sock batch")
	fs.IntVar(&cfg.units, "units", 1, "units requested by each sell")
	fs.StringVar(&cfg.color, "color", "BLACK", "sock color")
	fs.StringVar(&cfg.size, "size", "M", "sock size")
	fs.IntVar(&cfg.cotton, "cotton", 77, "cotton percentage of the seeded batch")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.stock < 0:
		return cfg, errors.New("stock must be >= 0")
	case cfg.units <= 0:
		return cfg, errors.New("units must be > 0")
	case cfg.cotton < 0 || cfg.cotton > 100:
		return cfg, errors.New("cotton must be between 0 and 100")
	case strings.TrimSpace(cfg.color) == "":
		return cfg, errors.New("color is required")
	case strings.TrimSpace(cfg.size) == "":
		return cfg, errors.New("size is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeSell, modeSellIdempotent, modeSellReplay:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func (cfg config) sock(quantity int) grpcsvc.Sock {
	return grpcsvc.Sock{
		Color:            cfg.color,
		Size:             cfg.size,
		CottonPercentage: cfg.cotton,
		Quantity:         quantity,
	}
}

// runner выполняет прогон поверх набора клиентов.
type runner struct {
	cfg       config
	clients   []sockClient
	col       *collector
	runID     string
	seededID  int64
	soldUnits atomic.Int64
	// Принятые продажи, списавшие не с заведённой партии.
	foreign atomic.Int64
	// Повторы, ответ которых отличается от первой попытки.
	mismatches atomic.Int64
}

func newRunner(cfg config, clients []sockClient) *runner {
	return &runner{
		cfg:     cfg,
		clients: clients,
		col:     newCollector(),
		runID:   uuid.NewString(),
	}
}

func (r *runner) run(ctx context.Context) (report, error) {
	seeded, err := r.seed(ctx)
	if err != nil {
		return report{}, fmt.Errorf("seed sock batch: %w", err)
	}
	r.seededID = seeded.ID

	startedAt := time.Now()
	jobs := make(chan int, r.cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := 0; workerID < r.cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(client sockClient) {
			defer wg.Done()
			for index := range jobs {
				r.sellScenario(ctx, client, index)
			}
		}(r.clients[workerID%len(r.clients)])
	}

	dispatchJobs(ctx, jobs, r.cfg)
	wg.Wait()

	result := r.col.buildReport(startedAt, time.Since(startedAt))
	stock, err := r.verifyStock(ctx)
	if err != nil {
		return result, fmt.Errorf("verify stock: %w", err)
	}
	result.Stock = stock
	result.FailedSells += r.mismatches.Load()
	result.ErrorRate = ratio(result.FailedSells, result.TotalSells)
	return result, nil
}

func (r *runner) seed(ctx context.Context) (grpcsvc.Sock, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.clients[0].AddSocks(callCtx, &grpcsvc.AddSocksRequest{Sock: r.cfg.sock(r.cfg.stock)})
	r.col.record(methodAdd, time.Since(start), grpcCode(err))
	if err != nil {
		return grpcsvc.Sock{}, err
	}
	return resp.Sock, nil
}

func (r *runner) sellScenario(ctx context.Context, client sockClient, index int) {
	req := &grpcsvc.SellSocksRequest{ID: r.seededID, Sock: r.cfg.sock(r.cfg.units)}

	var key string
	if r.cfg.mode != modeSell {
		key = fmt.Sprintf("lt-sell-%s-%d", r.runID, index)
	}

	first, firstErr := r.sell(ctx, client, req, key)
	if firstErr == nil {
		r.soldUnits.Add(int64(r.cfg.units))
		if first.Sock.ID != r.seededID {
			r.foreign.Add(1)
		}
	}

	if r.cfg.mode != modeSellReplay {
		return
	}
	second, secondErr := r.sell(ctx, client, req, key)
	if !sameOutcome(first, firstErr, second, secondErr) {
		r.mismatches.Add(1)
	}
}

func (r *runner) sell(ctx context.Context, client sockClient, req *grpcsvc.SellSocksRequest, key string) (*grpcsvc.SellSocksResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	defer cancel()
	if key != "" {
		callCtx = grpcsvc.WithIdempotencyKey(callCtx, key)
	}

	start := time.Now()
	resp, err := client.SellSocks(callCtx, req)
	r.col.record(methodSell, time.Since(start), grpcCode(err))
	return resp, err
}

// verifyStock сверяет остаток партии с числом принятых продаж.
func (r *runner) verifyStock(ctx context.Context) (stockReport, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.clients[0].GetSocks(callCtx, &grpcsvc.GetSocksRequest{ID: r.seededID})
	r.col.record(methodGet, time.Since(start), grpcCode(err))
	if err != nil {
		return stockReport{}, err
	}

	sold := int(r.soldUnits.Load())
	return stockReport{
		Seeded:     r.cfg.stock,
		Sold:       sold,
		Remaining:  resp.Sock.Quantity,
		Consistent: sold <= r.cfg.stock && resp.Sock.Quantity == r.cfg.stock-sold && r.foreign.Load() == 0,
	}, nil
}

func sameOutcome(first *grpcsvc.SellSocksResponse, firstErr error, second *grpcsvc.SellSocksResponse, secondErr error) bool {
	if (firstErr == nil) != (secondErr == nil) {
		return false
	}
	if firstErr != nil {
		return status.Code(firstErr) == status.Code(secondErr)
	}
	return *first == *second
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]sockClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := newRunner(cfg, clients).run(context.Background())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if !result.Stock.Consistent || result.FailedSells > 0 {
		os.Exit(1)
	}
}
