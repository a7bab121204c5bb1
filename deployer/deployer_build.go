package deployer

import (
	"context"

	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/solpipe/sol"
)

func (d *deployer) Build(
	ctx context.Context,
	source string,
) (*sol.CompilationResult, error) {
	compiler, err := d.Compiler()
	if err != nil {
		return nil, err
	}

	settings := d.compileSettings()

	input, importDiags, err := sol.StandardJSON(source, settings, d.importResolver())
	if err != nil {
		return nil, err
	}

	cacheKey := BuildCacheKey{
		SourceHash:      sol.SourceHash(source),
		InputHash:       sol.InputHash(input),
		CompilerVersion: compiler.Version(),
		Settings:        settings,
	}

	var cache BuildCache
	if !d.options.NoCache {
		cacheLog := log.WithField("cache_dir", d.options.BuildCacheDir)

		if cache, err = NewBuildCache(d.options.BuildCacheDir); err != nil {
			cacheLog.WithError(err).Warningln("failed to use build cache dir")
		} else if result, err := cache.LoadResult(cacheKey); err == nil {
			cacheLog.WithField("input_hash", cacheKey.InputHash).Debugln("loaded compilation result from cache")
			return result, nil
		} else if err != ErrNoCache {
			cacheLog.WithError(err).Warningln("failed to load cached compilation result")
		}
	}

	compileCtx, cancelFn := context.WithTimeout(ctx, d.options.CompileTimeout)
	defer cancelFn()

	result, err := sol.CompileInput(compileCtx, compiler, input, importDiags)
	if err != nil {
		return nil, err
	}

	result.SourceHash = cacheKey.SourceHash

	if cache != nil {
		if err := cache.StoreResult(cacheKey, result); err != nil {
			log.WithField("cache_dir", d.options.BuildCacheDir).WithError(err).Warningln("failed to store compilation result in build cache")
		}
	}

	return result, nil
}
