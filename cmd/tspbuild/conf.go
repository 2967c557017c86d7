package main

import (
	"io/ioutil"
	"path/filepath"

	"github.com/imdario/mergo"
	"github.com/mitchellh/go-homedir"
	"github.com/sisatech/toml"
)

// tspbuildConf mirrors the on-disk layout of ~/.tspbuild/conf.toml. Any
// field a user's config file omits keeps its zero value, which
// defaultConfig then fills in.
type tspbuildConf struct {
	Build struct {
		Concurrency  int    `toml:"concurrency"`
		BrickDim     uint32 `toml:"brick-dim"`
		PaddingWidth uint32 `toml:"padding-width"`
	} `toml:"build"`
}

func defaultConfig() tspbuildConf {
	var c tspbuildConf
	c.Build.Concurrency = 4
	c.Build.BrickDim = 8
	c.Build.PaddingWidth = 0
	return c
}

// loadConfig reads ~/.tspbuild/conf.toml, merging it over the built-in
// defaults. A missing or unreadable file is not an error: every field
// simply falls back to its default.
func loadConfig() (tspbuildConf, error) {

	def := defaultConfig()

	home, err := homedir.Dir()
	if err != nil {
		return def, nil
	}

	path := filepath.Join(home, ".tspbuild", "conf.toml")
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return def, nil
	}

	var fromFile tspbuildConf
	if err := toml.Unmarshal(data, &fromFile); err != nil {
		return def, err
	}

	if err := mergo.Merge(&fromFile, def); err != nil {
		return def, err
	}

	return fromFile, nil

}
