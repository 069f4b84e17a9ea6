// Package config defines the crawl configuration, its defaults, and its
// validation rules.
//
// Configuration flows in one direction: CLI flags and the optional
// .stealthcrawler YAML file populate a Config, Validate rejects
// contradictions before any network activity, and the populated struct is
// injected into the components that need it. No package reads configuration
// from ambient global state.
package config
