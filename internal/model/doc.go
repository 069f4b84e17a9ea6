// Package model defines the core data types shared across the crawler.
//
// The types here are deliberately free of behavior beyond small helpers:
// they are the currency passed between the frontier, the fetch pipeline,
// the statistics aggregator, and the report writers. Keeping them in one
// package avoids import cycles between those components.
package model
