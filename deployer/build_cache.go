package deployer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/solpipe/sol"
)

var ErrNoCache = errors.New("no cached version")

type BuildCache interface {
	StoreResult(key BuildCacheKey, result *sol.CompilationResult) error
	LoadResult(key BuildCacheKey) (result *sol.CompilationResult, err error)
	Clear() error
}

// BuildCacheKey identifies a compilation. InputHash covers the expanded
// compiler input with every resolved import, SourceHash only names the entry.
type BuildCacheKey struct {
	SourceHash      string
	InputHash       string
	CompilerVersion string
	Settings        sol.CompileSettings
}

func (k BuildCacheKey) hash() string {
	settings := fmt.Sprintf("%s|%s|%s|%d|%s", k.SourceHash, k.InputHash, k.CompilerVersion, k.Settings.OptimizerRuns, k.Settings.EVMVersion)
	return hex.EncodeToString(crypto.Keccak256([]byte(settings)))
}

type BuildCacheEntry struct {
	Timestamp       time.Time              `json:"timestamp"`
	SourceHash      string                 `json:"sourceHash"`
	InputHash       string                 `json:"inputHash"`
	CompilerVersion string                 `json:"compilerVersion"`
	OptimizerRuns   int                    `json:"optimizerRuns"`
	EVMVersion      sol.EVMVersion         `json:"evmVersion,omitempty"`
	Result          *sol.CompilationResult `json:"result"`
}

type buildCache struct {
	prefix string
}

func NewBuildCache(prefix string) (BuildCache, error) {
	if err := os.MkdirAll(prefix, 0755); err != nil {
		err = errors.Wrap(err, "failed to prepare build cache dir")
		return nil, err
	}

	c := &buildCache{
		prefix: prefix,
	}

	return c, nil
}

func (b *buildCache) entryPath(key BuildCacheKey) string {
	return filepath.Join(b.prefix, fmt.Sprintf("sol_%s_%s.json", strings.ToLower(key.SourceHash[:min(8, len(key.SourceHash))]), key.hash()))
}

func (b *buildCache) StoreResult(key BuildCacheKey, result *sol.CompilationResult) error {
	if result == nil {
		return errors.New("nothing to store")
	}

	entry := &BuildCacheEntry{
		Timestamp:       time.Now().UTC(),
		SourceHash:      key.SourceHash,
		InputHash:       key.InputHash,
		CompilerVersion: key.CompilerVersion,
		OptimizerRuns:   key.Settings.OptimizerRuns,
		EVMVersion:      key.Settings.EVMVersion,
		Result:          result,
	}

	entryContents, err := json.MarshalIndent(entry, "", "\t")
	if err != nil {
		err = errors.Wrap(err, "failed to marshal cache entry")
		return err
	}

	if err := os.WriteFile(b.entryPath(key), entryContents, 0644); err != nil {
		err = errors.Wrap(err, "failed write cache entry file")
		return err
	}

	return nil
}

func (b *buildCache) LoadResult(key BuildCacheKey) (result *sol.CompilationResult, err error) {
	entryContents, err := os.ReadFile(b.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCache
		}

		err = errors.Wrap(err, "failed read cache entry file")
		return nil, err
	}

	var entry BuildCacheEntry
	if err := json.Unmarshal(entryContents, &entry); err != nil {
		err = errors.Wrap(err, "failed to unmarshal cache entry")
		return nil, err
	} else if entry.InputHash != key.InputHash || entry.CompilerVersion != key.CompilerVersion {
		return nil, errors.New("cache entry input or compiler mismatch")
	} else if entry.Result == nil || entry.Result.Len() == 0 {
		return nil, ErrNoCache
	}

	return entry.Result, nil
}

func (b *buildCache) Clear() error {
	return filepath.Walk(b.prefix, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		} else if path == b.prefix {
			return nil
		} else if info.IsDir() {
			return nil
		}

		if filepath.Ext(info.Name()) == ".json" {
			if err := os.Remove(path); err != nil {
				log.WithError(err).Warningln("failed to cleanup", path)
			}
		}

		return nil
	})
}
