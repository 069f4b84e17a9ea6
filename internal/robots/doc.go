// Package robots implements the robots.txt compliance gate.
//
// The gate covers basic allow/disallow matching and the crawl-delay
// directive, nothing more. Rulesets are fetched once per domain and held
// for the crawl's duration; unreachable robots.txt means allow-all.
package robots
