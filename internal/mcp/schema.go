package mcp

import "time"

// SimulateInput defines the input for the macrosim_simulate tool.
type SimulateInput struct {
	Spec        string  `json:"spec,omitempty" jsonschema:"YAML or JSON model specification holding one model or a list of models"`
	Scenario    string  `json:"scenario,omitempty" jsonschema:"Name of a built-in scenario, used when spec is empty"`
	Runs        int     `json:"runs,omitempty" jsonschema:"Number of independent runs executed in parallel (default 1)"`
	Seed        *uint64 `json:"seed,omitempty" jsonschema:"Noise seed applied to every model, replacing seeds set in the specification"`
	ConcatNames string  `json:"concat_names,omitempty" jsonschema:"Join group names into one name column with this separator"`
	Output      string  `json:"output,omitempty" jsonschema:"File to write the table to, relative to the project root; .csv, .tsv or .arrow"`
	Save        bool    `json:"save,omitempty" jsonschema:"Persist the run in the run database"`
	Rows        int     `json:"rows,omitempty" jsonschema:"Maximum number of table rows returned inline (default 20, -1 for none)"`
}

// SimulateOutput defines the output for the macrosim_simulate tool.
type SimulateOutput struct {
	Header     []string      `json:"header" jsonschema:"Table column names"`
	Rows       [][]any       `json:"rows,omitempty" jsonschema:"Leading table rows"`
	RowCount   int           `json:"row_count" jsonschema:"Total number of table rows"`
	Snapshots  int           `json:"snapshots" jsonschema:"Number of recorded snapshots"`
	Final      []ModelTotals `json:"final" jsonschema:"Compartment totals of every model at its last recorded iteration"`
	OutputPath string        `json:"output_path,omitempty" jsonschema:"Where the table was written"`
	RunID      string        `json:"run_id,omitempty" jsonschema:"Run database identifier when saved"`
	Message    string        `json:"message" jsonschema:"Human-readable summary"`
}

// ModelTotals are the population-wide sums of one model.
type ModelTotals struct {
	Ident     *int               `json:"ident,omitempty"`
	Model     int                `json:"model"`
	Name      string             `json:"name,omitempty"`
	Iteration int                `json:"iteration"`
	Totals    []CompartmentTotal `json:"totals"`
}

// CompartmentTotal is one named sum. A slice of these keeps compartment
// order, which a JSON object would not.
type CompartmentTotal struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ScenariosInput defines the input for the macrosim_scenarios tool.
type ScenariosInput struct {
	Name string `json:"name,omitempty" jsonschema:"Return the YAML source of this scenario instead of the list"`
}

// ScenariosOutput defines the output for the macrosim_scenarios tool.
type ScenariosOutput struct {
	Scenarios []string `json:"scenarios,omitempty" jsonschema:"Available built-in scenario names"`
	Source    string   `json:"source,omitempty" jsonschema:"YAML source of the requested scenario"`
}

// RunsInput defines the input for the macrosim_runs tool.
type RunsInput struct {
	RunID string `json:"run_id,omitempty" jsonschema:"Show the totals of this run (full id or unique prefix) instead of listing"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to list (default 20)"`
}

// RunsOutput defines the output for the macrosim_runs tool.
type RunsOutput struct {
	Runs   []RunSummary `json:"runs,omitempty" jsonschema:"Stored runs, newest first"`
	Totals []RunPoint   `json:"totals,omitempty" jsonschema:"Compartment totals of the requested run per snapshot"`
}

// RunSummary describes one stored run.
type RunSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	BatchID   string    `json:"batch_id,omitempty"`
	Models    int       `json:"models"`
	Snapshots int       `json:"snapshots"`
	Seed      *uint64   `json:"seed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RunPoint is one compartment total of a stored run.
type RunPoint struct {
	Snapshot    int     `json:"snapshot"`
	Model       int     `json:"model"`
	Iteration   int     `json:"iteration"`
	Compartment string  `json:"compartment"`
	Value       float64 `json:"value"`
}
