// Package config loads pool and demo settings from YAML or JSON files.
//
//	pool:
//	  name: demo
//	  workers: 5
//	demo:
//	  tasks: 100
//	  submitters: 1
//	log:
//	  level: info
//	server:
//	  addr: ":8080"
//	  shutdown_timeout: 5s
//
// Fields missing from the file keep the values from Default. Validate
// reports every problem wrapped in ErrInvalid.
package config
