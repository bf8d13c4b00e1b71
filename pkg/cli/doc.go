// Package cli holds the pieces shared by the xiaoxia commands: the contexts
// configuration, result output, and terminal renderers for paced streams.
//
// Configuration lives in ~/.xiaoxia/config.yaml and holds named contexts,
// kubectl style. A context selects a chat backend, its credentials and the
// pacing profile:
//
//	current_context: dev
//	contexts:
//	  dev:
//	    name: dev
//	    backend: app
//	    api_key: sk-...
//	    app_id: 3a8c...
//	    pacing:
//	      speed: normal
//	      chunk: small
//	      priority: reasoning-first
package cli
