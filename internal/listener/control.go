package listener

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ishandutta2007/taskt/internal/auth"
	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/infrastructure/logging"
	"github.com/ishandutta2007/taskt/internal/script"
)

// Control actions.
const (
	ActionStart  = "start"
	ActionStatus = "status"
	ActionCancel = "cancel"
	ActionPause  = "pause"
	ActionResume = "resume"
)

// Response results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Envelope is a control request, received over HTTP or MQTT.
type Envelope struct {
	RequestID string          `json:"request_id,omitempty"`
	Action    string          `json:"action"`
	Target    string          `json:"target,omitempty"`
	AuthToken string          `json:"auth_token,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// StartPayload is the payload of a start action. Exactly one of Script
// (a name relative to the scripts folder) and Document (an inline script)
// must be set.
type StartPayload struct {
	Name      string          `json:"name,omitempty"`
	Script    string          `json:"script,omitempty"`
	Document  json.RawMessage `json:"document,omitempty"`
	Variables map[string]any  `json:"variables,omitempty"`
}

// Response answers an Envelope.
type Response struct {
	RequestID string             `json:"request_id,omitempty"`
	Result    string             `json:"result"`
	RunID     string             `json:"run_id,omitempty"`
	State     automation.State   `json:"state,omitempty"`
	Code      string             `json:"code,omitempty"`
	Detail    string             `json:"detail,omitempty"`
	Problems  []string           `json:"problems,omitempty"`
	Status    *automation.Status `json:"status,omitempty"`
}

// Controller executes control envelopes against a run manager. It is
// transport independent; the HTTP and MQTT front-ends share one.
type Controller struct {
	manager       *automation.Manager
	loader        *script.Loader
	scriptsFolder string
	logger        *logging.Logger
}

// NewController creates a Controller. Scripts named in start payloads are
// resolved inside scriptsFolder.
func NewController(manager *automation.Manager, loader *script.Loader, scriptsFolder string, logger *logging.Logger) *Controller {
	return &Controller{
		manager:       manager,
		loader:        loader,
		scriptsFolder: scriptsFolder,
		logger:        logger,
	}
}

// Handle authorises and executes env on behalf of p. The returned Response
// is always populated; err is non-nil when Result is "error" and lets the
// transport choose a status.
func (c *Controller) Handle(p *auth.Principal, env Envelope) (Response, error) {
	resp, err := c.handle(p, env)
	resp.RequestID = env.RequestID
	if err != nil {
		_, code := classify(err)
		resp.Result = ResultError
		resp.Code = code
		resp.Detail = err.Error()
		resp.Problems = validationDetails(err)
		c.logger.Info("control request rejected", "action", env.Action, "target", env.Target, "error", err)
		return resp, err
	}
	resp.Result = ResultOK
	return resp, nil
}

func (c *Controller) handle(p *auth.Principal, env Envelope) (Response, error) {
	action := strings.ToLower(strings.TrimSpace(env.Action))
	perm := auth.PermissionForAction(action)
	if perm == "" {
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
	if err := auth.Authorize(p, perm); err != nil {
		return Response{}, err
	}

	if action == ActionStart {
		return c.start(env.Payload)
	}

	target := strings.TrimSpace(env.Target)
	if target == "" {
		return Response{}, fmt.Errorf("%w: %s needs a target run id", ErrBadRequest, action)
	}

	var err error
	switch action {
	case ActionCancel:
		err = c.manager.Cancel(target)
	case ActionPause:
		err = c.manager.Pause(target)
	case ActionResume:
		err = c.manager.Resume(target)
	}
	if err != nil {
		return Response{RunID: target}, err
	}

	st, err := c.manager.Status(target)
	if err != nil {
		return Response{RunID: target}, err
	}
	if action != ActionStatus {
		c.logger.Info("control action applied", "action", action, "run_id", target, "by", p.Subject)
	}
	return Response{RunID: target, State: st.State, Status: &st}, nil
}

func (c *Controller) start(raw json.RawMessage) (Response, error) {
	var payload StartPayload
	if len(bytes.TrimSpace(raw)) == 0 {
		return Response{}, fmt.Errorf("%w: start needs a payload", ErrBadRequest)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Response{}, fmt.Errorf("%w: decoding start payload: %w", ErrBadRequest, err)
	}

	e, err := c.Start(payload)
	if err != nil {
		return Response{}, err
	}
	return Response{RunID: e.ID(), State: e.State()}, nil
}

// Start loads the script described by payload and launches it.
func (c *Controller) Start(payload StartPayload) (*automation.Engine, error) {
	doc, cmds, err := c.load(payload)
	if err != nil {
		return nil, err
	}

	vars := doc.InitialVariables()
	if vars == nil {
		vars = make(map[string]any, len(payload.Variables))
	}
	for k, v := range payload.Variables {
		vars[k] = v
	}

	name := payload.Name
	if name == "" {
		name = doc.Name
	}

	e, err := c.manager.Start(name, cmds, vars)
	if err != nil {
		return nil, err
	}
	c.logger.Info("run started remotely", "run_id", e.ID(), "name", name, "commands", len(cmds))
	return e, nil
}

func (c *Controller) load(payload StartPayload) (*script.Document, []automation.Command, error) {
	hasScript := strings.TrimSpace(payload.Script) != ""
	hasDoc := len(bytes.TrimSpace(payload.Document)) > 0
	if hasScript == hasDoc {
		return nil, nil, fmt.Errorf("%w: start needs exactly one of script or document", ErrBadRequest)
	}

	if hasScript {
		path, err := script.ResolvePath(c.scriptsFolder, payload.Script)
		if err != nil {
			return nil, nil, err
		}
		return c.loader.Load(path)
	}

	doc, err := script.Parse(payload.Document)
	if err != nil {
		return nil, nil, err
	}
	cmds, err := c.loader.Build(doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, cmds, nil
}

// validationDetails unpacks validation problems for a response body.
func validationDetails(err error) []string {
	if !errors.Is(err, automation.ErrValidation) {
		return nil
	}
	var out []string
	for _, ve := range automation.ValidationErrors(err) {
		out = append(out, ve.Error())
	}
	return out
}
