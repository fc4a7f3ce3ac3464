package universe

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"sort"
	"strings"

	"StockScreener/internal/model"
)

// Source enumerates the symbol universe for one scan. Enumeration failure
// is the one fault that fails a whole scan, so sources report errors
// rather than returning a best-effort list.
type Source interface {
	Symbols(ctx context.Context) ([]model.Symbol, error)
}

// StaticSource serves a fixed symbol list.
type StaticSource []model.Symbol

func (s StaticSource) Symbols(_ context.Context) ([]model.Symbol, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("static universe is empty")
	}
	out := make([]model.Symbol, len(s))
	copy(out, s)
	return out, nil
}

// FileSource reads symbols from a text file, one per line, either a bare
// code or "code,name". Blank lines and #-comments are skipped.
type FileSource struct {
	Path string
}

func (f FileSource) Symbols(_ context.Context) ([]model.Symbol, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer file.Close()

	var symbols []model.Symbol
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		code, name, _ := strings.Cut(line, ",")
		symbols = append(symbols, model.Symbol{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("universe file %s has no symbols", f.Path)
	}
	return symbols, nil
}

// Options narrow an enumerated universe before scanning.
type Options struct {
	// Prefixes keeps only codes starting with one of these board prefixes
	// (e.g. 00, 30, 60, 68). Empty means keep everything.
	Prefixes []string
	// ExcludeName drops symbols whose name matches the pattern
	// (e.g. "ST|退" for special-treatment and delisting stocks).
	ExcludeName string
	// SampleRatio keeps a deterministic fraction of the universe for
	// quick runs; values outside (0,1) mean no sampling.
	SampleRatio float64
}

// Filtered decorates a source with board/name filtering and sampling.
type Filtered struct {
	src  Source
	opts Options
	re   *regexp.Regexp
}

// NewFiltered builds the decorator, compiling the exclusion pattern once.
func NewFiltered(src Source, opts Options) (*Filtered, error) {
	f := &Filtered{src: src, opts: opts}
	if opts.ExcludeName != "" {
		re, err := regexp.Compile(opts.ExcludeName)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern: %w", err)
		}
		f.re = re
	}
	return f, nil
}

func (f *Filtered) Symbols(ctx context.Context) ([]model.Symbol, error) {
	symbols, err := f.src.Symbols(ctx)
	if err != nil {
		return nil, err
	}

	kept := symbols[:0:0]
	for _, s := range symbols {
		if len(f.opts.Prefixes) > 0 && !hasAnyPrefix(s.Code, f.opts.Prefixes) {
			continue
		}
		if f.re != nil && f.re.MatchString(s.Name) {
			continue
		}
		kept = append(kept, s)
	}

	if r := f.opts.SampleRatio; r > 0 && r < 1 && len(kept) > 1 {
		kept = sample(kept, r)
	}
	return kept, nil
}

func hasAnyPrefix(code string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// sample keeps a fixed-seed random fraction so quick test runs are
// reproducible, then restores code order.
func sample(symbols []model.Symbol, ratio float64) []model.Symbol {
	n := int(float64(len(symbols)) * ratio)
	if n < 1 {
		n = 1
	}
	shuffled := make([]model.Symbol, len(symbols))
	copy(shuffled, symbols)
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	picked := shuffled[:n]
	sort.Slice(picked, func(i, j int) bool { return picked[i].Code < picked[j].Code })
	return picked
}
