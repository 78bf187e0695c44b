// Package flow implements the two step wizard that collects a wallet and its
// items before handing the finished record to an EntryCreator.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ErrFlowNotFound is returned for unknown or expired flows
var ErrFlowNotFound = errors.New("flow not found")

// Steps of the wizard
const (
	StepUser = "user"
	StepItem = "item"
)

// ResultType tells the caller what to do next
type ResultType string

const (
	ResultForm        ResultType = "form"
	ResultCreateEntry ResultType = "create_entry"
)

// EntryTitle is the title of every entry created by the wizard
const EntryTitle = "Wallet"

// Field describes one input of a form
type Field struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Default  string   `json:"default,omitempty"`
}

// Result is the answer to every wizard call
type Result struct {
	FlowID string              `json:"flow_id"`
	Type   ResultType          `json:"type"`
	StepID string              `json:"step_id,omitempty"`
	Schema []Field             `json:"data_schema,omitempty"`
	Errors map[string]string   `json:"errors,omitempty"`
	Title  string              `json:"title,omitempty"`
	Entry  *models.ConfigEntry `json:"result,omitempty"`
}

// UserInput is the first step: wallet metadata
type UserInput struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url"`
	Type string `json:"type" validate:"required,oneof=saving stock crypto"`
}

// ItemInput is the repeated second step
type ItemInput struct {
	ItemName   string `json:"item_name" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
	EntityID   string `json:"entity_id" validate:"required"`
	AddAnother bool   `json:"add_another"`
}

// EntryCreator stores and sets up a finished wallet
type EntryCreator interface {
	CreateEntry(ctx context.Context, wallet models.Wallet, source string) (*models.ConfigEntry, error)
}

var (
	userSchema = []Field{
		{Name: "name", Type: "string", Required: true},
		{Name: "url", Type: "string", Default: ""},
		{Name: "type", Type: "select", Required: true, Options: walletTypes()},
	}
	itemSchema = []Field{
		{Name: "item_name", Type: "string", Required: true},
		{Name: "amount", Type: "string", Required: true},
		{Name: "entity_id", Type: "string", Required: true},
		{Name: "add_another", Type: "boolean"},
	}
)

func walletTypes() []string {
	out := make([]string, 0, len(models.WalletTypes))
	for _, t := range models.WalletTypes {
		out = append(out, string(t))
	}
	return out
}

type session struct {
	step   string
	wallet models.Wallet
}

// Manager keeps in-progress wizards
type Manager struct {
	sessions *cache.Cache
	creator  EntryCreator
	validate *validator.Validate
	log      *logrus.Logger
	mu       sync.Mutex
}

// NewManager creates a wizard manager whose sessions expire after ttl
func NewManager(creator EntryCreator, ttl time.Duration, log *logrus.Logger) *Manager {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &Manager{
		sessions: cache.New(ttl, 2*ttl),
		creator:  creator,
		validate: v,
		log:      log,
	}
}

// Start opens a new wizard at the user step
func (m *Manager) Start() Result {
	id := uuid.NewString()
	m.sessions.SetDefault(id, &session{step: StepUser})
	m.log.Debugf("Flow %s started", id)
	return form(id, StepUser, nil)
}

// Configure submits raw JSON input to the current step of a flow
func (m *Manager) Configure(ctx context.Context, flowID string, data []byte) (Result, error) {
	m.mu.Lock()
	step, err := m.step(flowID)
	m.mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	switch step {
	case StepUser:
		var in UserInput
		if err := json.Unmarshal(data, &in); err != nil {
			return Result{}, fmt.Errorf("invalid user input: %w", err)
		}
		return m.SubmitUser(flowID, in)
	default:
		var in ItemInput
		if err := json.Unmarshal(data, &in); err != nil {
			return Result{}, fmt.Errorf("invalid item input: %w", err)
		}
		return m.SubmitItem(ctx, flowID, in)
	}
}

// SubmitUser handles the wallet metadata step
func (m *Manager) SubmitUser(flowID string, in UserInput) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.session(flowID)
	if err != nil {
		return Result{}, err
	}
	if s.step != StepUser {
		return Result{}, fmt.Errorf("flow %s is at step %s", flowID, s.step)
	}
	if errs := m.check(in); errs != nil {
		return form(flowID, StepUser, errs), nil
	}

	s.wallet = models.Wallet{
		Name:  in.Name,
		URL:   in.URL,
		Type:  models.WalletType(in.Type),
		Items: []models.Item{},
	}
	s.step = StepItem
	m.sessions.SetDefault(flowID, s)
	return form(flowID, StepItem, nil), nil
}

// SubmitItem appends one item; without add_another the entry is created
func (m *Manager) SubmitItem(ctx context.Context, flowID string, in ItemInput) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.session(flowID)
	if err != nil {
		return Result{}, err
	}
	if s.step != StepItem {
		return Result{}, fmt.Errorf("flow %s is at step %s", flowID, s.step)
	}
	errs := m.check(in)
	amount, parseErr := models.ParseAmount(in.Amount)
	if parseErr != nil && in.Amount != "" {
		if errs == nil {
			errs = map[string]string{}
		}
		errs["amount"] = "invalid_amount"
	}
	if errs != nil {
		m.log.Infof("Flow %s: invalid item %q: %v", flowID, in.ItemName, errs)
		return form(flowID, StepItem, errs), nil
	}

	wallet := s.wallet
	wallet.Items = append(append([]models.Item{}, s.wallet.Items...), models.Item{
		Name:     in.ItemName,
		EntityID: in.EntityID,
		Amount:   amount,
	})

	if in.AddAnother {
		s.wallet = wallet
		m.sessions.SetDefault(flowID, s)
		return form(flowID, StepItem, nil), nil
	}

	entry, err := m.creator.CreateEntry(ctx, wallet, models.SourceUser)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create entry: %w", err)
	}
	m.sessions.Delete(flowID)
	m.log.Infof("Flow %s created wallet %q with %d items", flowID, wallet.Name, len(wallet.Items))
	return Result{
		FlowID: flowID,
		Type:   ResultCreateEntry,
		Title:  EntryTitle,
		Entry:  entry,
	}, nil
}

func (m *Manager) session(flowID string) (*session, error) {
	v, found := m.sessions.Get(flowID)
	if !found {
		return nil, ErrFlowNotFound
	}
	return v.(*session), nil
}

func (m *Manager) step(flowID string) (string, error) {
	s, err := m.session(flowID)
	if err != nil {
		return "", err
	}
	return s.step, nil
}

// check maps validation failures to field name → failed tag
func (m *Manager) check(in interface{}) map[string]string {
	err := m.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"base": "unknown"}
	}
	errs := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		errs[fe.Field()] = fe.Tag()
	}
	return errs
}

func form(flowID, step string, errs map[string]string) Result {
	schema := userSchema
	if step == StepItem {
		schema = itemSchema
	}
	return Result{
		FlowID: flowID,
		Type:   ResultForm,
		StepID: step,
		Schema: schema,
		Errors: errs,
	}
}
