package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Getting started with appgen",
		Content: topicQuickstart,
	},
	{
		Name:    "config",
		Title:   "Configuration Reference",
		Summary: "Config file keys, defaults, and environment expansion",
		Content: topicConfig,
	},
	{
		Name:    "pipeline",
		Title:   "Pipeline Stages",
		Summary: "Extraction, planning, levels, validation, and reconciliation",
		Content: topicPipeline,
	},
	{
		Name:    "state",
		Title:   "State Directory",
		Summary: "Structure of .appgen/ and what gets saved",
		Content: topicState,
	},
	{
		Name:    "serve",
		Title:   "HTTP Server",
		Summary: "Run endpoints, live progress, and metrics",
		Content: topicServe,
	},
}

const topicQuickstart = `Quick Start
===========

1. Initialize a project:

    appgen init

   This creates .appgen/config.yaml.

2. Provide credentials. With the default openai backend export
   OPENAI_API_KEY. With backend: claude the claude CLI must be on PATH.

3. Preview the plan without generating any files:

    appgen generate --dry-run "a landing page for a bakery with a menu"

4. Generate the site:

    appgen generate "a landing page for a bakery with a menu"

   Files are published to the output directory (site/ by default). The
   previous contents of that directory are replaced only once every file
   has been written.

5. Refine the last run:

    appgen generate --continue "add a contact page"

6. Inspect and diagnose:

    appgen status
    appgen doctor
`

const topicConfig = `Configuration Reference
=======================

appgen reads .appgen/config.yaml (override with --config). A missing file
means every default applies. ${VAR} references are expanded from the
environment before the YAML is decoded.

Backend
-------
  backend          openai | claude                      (default: openai)
  model            model name passed to the backend
  api-key          OpenAI key; falls back to OPENAI_API_KEY
  base-url         OpenAI-compatible endpoint
  claude-binary    path to the claude CLI               (default: claude)

Retries
-------
  timeout          per-attempt timeout in seconds       (default: 120)
  max-attempts     attempts per completion call         (default: 4)
  backoff-ms       first backoff interval               (default: 500)
  max-backoff-ms   backoff ceiling; must be >= backoff  (default: 8000)
  rate-limit       requests per second, 0 disables      (default: 0)

Only transient failures (timeouts, 429, 5xx) are retried. Other failures
end the call at once.

Generation
----------
  workers          concurrent calls within one level    (default: 4)
  regenerate       feedback-carrying retries per file   (default: 1)
  reconcile        run the consistency pass             (default: true)
  strict-planning  fail instead of using the default plan when the
                   planning reply is unreadable         (default: false)

Paths
-----
  output-dir       published site directory             (default: site)
  state-dir        run records, history, and log        (default: .appgen)
  log-level        debug | info | warn | error          (default: info)
`

const topicPipeline = `Pipeline Stages
===============

A run moves through these states:

  pending -> extracting -> planning -> scheduled -> generating -> reconciling -> done

extracting   The request is turned into a feature summary. Unreadable
             replies degrade to a summary built from the request text.

planning     The model proposes a manifest: files, kinds (markup, style,
             behavior), purposes and dependencies. Unknown kinds and
             duplicate names are dropped. A dependency cycle or a
             dependency on an unplanned file fails the run.

scheduled    The manifest is split into levels. Every file in a level
             depends only on files in earlier levels.

generating   Levels run in order. Files within a level are generated
             concurrently, up to the worker cap. Each file sees the
             content of the files it depends on.

             Every candidate is validated for its kind. A candidate that
             fails is repaired when possible, then regenerated with the
             validator's feedback, and finally replaced by a fallback
             placeholder. A file is never left invalid.

reconciling  One pass lets the model fix cross-file mismatches such as
             classes a page uses that no stylesheet defines. Revisions
             that do not validate are ignored.

Failures during extracting or planning end the run as failed. An
interrupt (Ctrl-C) lets the level in flight finish, then the run ends as
cancelled.
`

const topicState = `State Directory
===============

.appgen/
  config.yaml        configuration
  latest.json        the most recent run record
  runs/<id>.json     one record per run
  events.jsonl       progress events of every run, one JSON object per line
  appgen.log         structured log

A run record holds the request, final state, where a failed run stopped,
the features, the manifest, the levels, a status per file (valid,
repaired, fallback) and per-stage timing. 'appgen status' renders it and
'appgen doctor' sends it, together with the run's events, to the model for
a diagnosis.
`

const topicServe = `HTTP Server
===========

    appgen serve --addr :8080

POST /v1/runs        start a run; body {"request": "...", "continue": false}
                     responds 202 with {"id": "..."}
GET  /v1/runs        list stored runs, newest first
GET  /v1/runs/:id    one run record; 404 when unknown
GET  /v1/progress    websocket stream of progress events; ?run=<id> filters
GET  /metrics        Prometheus metrics

Runs started over HTTP publish their files to the configured output
directory, exactly as the CLI does.
`
