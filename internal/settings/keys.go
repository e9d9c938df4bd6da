package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/EimisPacheco/pixie/internal/config"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
	kindList
)

type keySpec struct {
	kind valueKind
	read func(config.Config) string
}

// keySpecs maps every dotted setting key to its value kind and a
// reader over the effective configuration.
var keySpecs = map[string]keySpec{
	"voice.api_base_url": {kindString, func(c config.Config) string { return c.Voice.APIBaseURL }},

	"generative.api_base_url":      {kindString, func(c config.Config) string { return c.Generative.APIBaseURL }},
	"generative.model":             {kindString, func(c config.Config) string { return c.Generative.Model }},
	"generative.max_output_tokens": {kindInt, func(c config.Config) string { return strconv.Itoa(c.Generative.MaxOutputTokens) }},

	"audio.recorder_command": {kindString, func(c config.Config) string { return c.Audio.RecorderCommand }},
	"audio.input_format":     {kindString, func(c config.Config) string { return c.Audio.InputFormat }},
	"audio.input_device":     {kindString, func(c config.Config) string { return c.Audio.InputDevice }},
	"audio.sample_rate":      {kindInt, func(c config.Config) string { return strconv.Itoa(c.Audio.SampleRate) }},
	"audio.channels":         {kindInt, func(c config.Config) string { return strconv.Itoa(c.Audio.Channels) }},

	"playback.player_command": {kindString, func(c config.Config) string { return c.Playback.PlayerCommand }},
	"playback.sample_rate":    {kindInt, func(c config.Config) string { return strconv.Itoa(c.Playback.SampleRate) }},
	"playback.channels":       {kindInt, func(c config.Config) string { return strconv.Itoa(c.Playback.Channels) }},

	"clipboard.command": {kindString, func(c config.Config) string { return c.Clipboard.Command }},

	"target.path":       {kindString, func(c config.Config) string { return c.Target.Path }},
	"target.candidates": {kindList, func(c config.Config) string { return strings.Join(c.Target.Candidates, ",") }},

	"rules.path":            {kindString, func(c config.Config) string { return c.Rules.Path }},
	"rules.iteration_limit": {kindInt, func(c config.Config) string { return strconv.Itoa(c.Rules.IterationLimit) }},
	"rules.spoken_commands": {kindBool, func(c config.Config) string { return strconv.FormatBool(c.Rules.SpokenCommands) }},

	"session.chunk_size":         {kindInt, func(c config.Config) string { return strconv.Itoa(c.Session.ChunkSize) }},
	"session.stop_grace":         {kindDuration, func(c config.Config) string { return c.Session.StopGrace.String() }},
	"session.dedupe_limit":       {kindInt, func(c config.Config) string { return strconv.Itoa(c.Session.DedupeLimit) }},
	"session.revision_threshold": {kindFloat, func(c config.Config) string { return strconv.FormatFloat(c.Session.RevisionThreshold, 'g', -1, 64) }},

	"metrics.addr": {kindString, func(c config.Config) string { return c.Metrics.Addr }},

	"log.level":  {kindString, func(c config.Config) string { return c.Log.Level }},
	"log.format": {kindString, func(c config.Config) string { return c.Log.Format }},
}

// Keys returns all known setting keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(keySpecs))
	for key := range keySpecs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func specFor(key string) (keySpec, error) {
	spec, ok := keySpecs[key]
	if !ok {
		return keySpec{}, fmt.Errorf("unknown setting %q; run \"pixie settings show\" to list keys", key)
	}
	return spec, nil
}

// coerce turns the raw CLI string into the TOML value for the key.
func coerce(spec keySpec, raw string) (any, error) {
	switch spec.kind {
	case kindInt:
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", raw)
		}
		return value, nil
	case kindFloat:
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", raw)
		}
		return value, nil
	case kindBool:
		value, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", raw)
		}
		return value, nil
	case kindDuration:
		if _, err := time.ParseDuration(strings.TrimSpace(raw)); err != nil {
			return nil, fmt.Errorf("expected a duration such as 500ms or 2s, got %q", raw)
		}
		return strings.TrimSpace(raw), nil
	case kindList:
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				values = append(values, trimmed)
			}
		}
		return values, nil
	default:
		return raw, nil
	}
}
