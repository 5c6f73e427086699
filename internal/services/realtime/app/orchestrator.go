package server

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/louisbranch/crewdeck/internal/services/notifications/domain"
	"github.com/louisbranch/crewdeck/internal/services/notifications/render"
	"github.com/louisbranch/crewdeck/internal/services/realtime/directory"
	"github.com/louisbranch/crewdeck/internal/services/realtime/registry"
)

const (
	eventSource   = "realtime"
	defaultLocale = "en-US"
)

// Orchestrator turns one domain change into a durable ledger write per
// recipient and one live broadcast to the owning project. It is the single
// entry point for change-event producers and never raises: notification
// health must not roll back the domain transaction that triggered the event.
type Orchestrator struct {
	directory  directory.Reader
	ledger     *domain.Service
	dispatcher *registry.Dispatcher
	logf       func(format string, args ...any)
}

// NewOrchestrator wires the change-event entry point over its collaborators.
func NewOrchestrator(reader directory.Reader, ledger *domain.Service, dispatcher *registry.Dispatcher) *Orchestrator {
	return &Orchestrator{
		directory:  reader,
		ledger:     ledger,
		dispatcher: dispatcher,
		logf:       log.Printf,
	}
}

// pushPayload is the data block of one outbound change-event envelope.
type pushPayload struct {
	TaskID     string `json:"task_id,omitempty"`
	ProjectID  string `json:"project_id"`
	OldStatus  string `json:"old_status,omitempty"`
	NewStatus  string `json:"new_status,omitempty"`
	AssigneeID string `json:"assignee_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Message    string `json:"message"`
}

// changeEvent is one resolved domain change ready for fan-out.
type changeEvent struct {
	kind       domain.Kind
	taskID     string
	projectID  string
	actorID    string
	assigneeID string
	oldStatus  string
	newStatus  string
	dedupeKey  string
	renderIn   render.Input
	extras     []string
}

// TaskStatusChanged fans out a task status transition. Transitions into a
// terminal completed state use the milestone kind; everything else is a
// status change.
func (o *Orchestrator) TaskStatusChanged(ctx context.Context, taskID string, oldStatus string, newStatus string, actorID string) {
	if o == nil {
		return
	}
	task, project, ok := o.resolveTask(ctx, taskID)
	if !ok {
		return
	}

	kind := domain.KindStatusChange
	if isTerminalStatus(newStatus) {
		kind = domain.KindMilestone
	}

	o.notify(ctx, project, task.AssigneeIDs, changeEvent{
		kind:      kind,
		taskID:    task.ID,
		projectID: project.ID,
		actorID:   actorID,
		oldStatus: oldStatus,
		newStatus: newStatus,
		dedupeKey: "task-status:" + task.ID + ":" + oldStatus + "->" + newStatus,
		renderIn: render.Input{
			Kind:        kind,
			TaskTitle:   task.Title,
			ProjectName: project.Name,
			NewStatus:   newStatus,
		},
	})
}

// TaskAssigned fans out a task assignment. The new assignee is always a
// recipient candidate even before the directory reflects the assignment.
func (o *Orchestrator) TaskAssigned(ctx context.Context, taskID string, assigneeID string, actorID string) {
	if o == nil {
		return
	}
	task, project, ok := o.resolveTask(ctx, taskID)
	if !ok {
		return
	}

	o.notify(ctx, project, task.AssigneeIDs, changeEvent{
		kind:       domain.KindAssignment,
		taskID:     task.ID,
		projectID:  project.ID,
		actorID:    actorID,
		assigneeID: strings.TrimSpace(assigneeID),
		dedupeKey:  "task-assigned:" + task.ID + ":" + strings.TrimSpace(assigneeID),
		renderIn: render.Input{
			Kind:        domain.KindAssignment,
			TaskTitle:   task.Title,
			ProjectName: project.Name,
		},
		extras: []string{strings.TrimSpace(assigneeID)},
	})
}

// ProjectUpdated fans out a change to project-level fields.
func (o *Orchestrator) ProjectUpdated(ctx context.Context, projectID string, actorID string) {
	if o == nil {
		return
	}
	project, ok := o.resolveProject(ctx, projectID)
	if !ok {
		return
	}

	o.notify(ctx, project, nil, changeEvent{
		kind:      domain.KindProjectUpdate,
		projectID: project.ID,
		actorID:   actorID,
		renderIn: render.Input{
			Kind:        domain.KindProjectUpdate,
			ProjectName: project.Name,
		},
	})
}

// CommentAdded fans out a new comment on a task.
func (o *Orchestrator) CommentAdded(ctx context.Context, taskID string, actorID string) {
	if o == nil {
		return
	}
	task, project, ok := o.resolveTask(ctx, taskID)
	if !ok {
		return
	}

	o.notify(ctx, project, task.AssigneeIDs, changeEvent{
		kind:      domain.KindComment,
		taskID:    task.ID,
		projectID: project.ID,
		actorID:   actorID,
		renderIn: render.Input{
			Kind:        domain.KindComment,
			TaskTitle:   task.Title,
			ProjectName: project.Name,
		},
	})
}

// SystemAlertPosted fans out an operator announcement to a project. An empty
// actor id means nobody is excluded from the recipient set.
func (o *Orchestrator) SystemAlertPosted(ctx context.Context, projectID string, alert string, actorID string) {
	if o == nil {
		return
	}
	project, ok := o.resolveProject(ctx, projectID)
	if !ok {
		return
	}

	o.notify(ctx, project, nil, changeEvent{
		kind:      domain.KindSystemAlert,
		projectID: project.ID,
		actorID:   actorID,
		renderIn: render.Input{
			Kind:        domain.KindSystemAlert,
			TaskTitle:   alert,
			ProjectName: project.Name,
		},
	})
}

func (o *Orchestrator) resolveTask(ctx context.Context, taskID string) (directory.Task, directory.Project, bool) {
	if o.directory == nil {
		o.log("realtime: directory is not configured, dropping event for task=%q", taskID)
		return directory.Task{}, directory.Project{}, false
	}
	task, err := o.directory.GetTask(ctx, taskID)
	if err != nil {
		o.log("realtime: resolve task=%q failed, dropping event: %v", taskID, err)
		return directory.Task{}, directory.Project{}, false
	}
	project, err := o.directory.GetProject(ctx, task.ProjectID)
	if err != nil {
		o.log("realtime: resolve project=%q for task=%q failed, dropping event: %v", task.ProjectID, taskID, err)
		return directory.Task{}, directory.Project{}, false
	}
	return task, project, true
}

func (o *Orchestrator) resolveProject(ctx context.Context, projectID string) (directory.Project, bool) {
	if o.directory == nil {
		o.log("realtime: directory is not configured, dropping event for project=%q", projectID)
		return directory.Project{}, false
	}
	project, err := o.directory.GetProject(ctx, projectID)
	if err != nil {
		o.log("realtime: resolve project=%q failed, dropping event: %v", projectID, err)
		return directory.Project{}, false
	}
	return project, true
}

// notify writes one ledger row per recipient, then independently broadcasts
// to the owning project. Ledger failures are logged per recipient and never
// block the live push.
func (o *Orchestrator) notify(ctx context.Context, project directory.Project, assigneeIDs []string, event changeEvent) {
	event.renderIn.ActorName = o.actorName(ctx, event.actorID)
	recipients := recipientSet(project, assigneeIDs, event.extras, event.actorID)

	for _, recipientID := range recipients {
		output := render.Render(render.NewLocalizer(o.recipientLocale(ctx, recipientID)), event.renderIn)
		_, err := o.ledger.Create(ctx, domain.CreateInput{
			RecipientUserID: recipientID,
			Title:           output.Title,
			Body:            output.BodyText,
			Kind:            event.kind,
			TaskID:          event.taskID,
			ProjectID:       event.projectID,
			DedupeKey:       event.dedupeKey,
			Source:          eventSource,
		})
		if err != nil {
			o.log("realtime: ledger write for user=%q kind=%q failed: %v", recipientID, event.kind, err)
		}
	}

	if o.dispatcher == nil {
		return
	}
	output := render.Render(render.NewLocalizer(defaultLocale), event.renderIn)
	o.dispatcher.Broadcast(event.projectID, registry.Envelope{
		Type: string(event.kind),
		Data: mustJSON(pushPayload{
			TaskID:     event.taskID,
			ProjectID:  event.projectID,
			OldStatus:  event.oldStatus,
			NewStatus:  event.newStatus,
			AssigneeID: event.assigneeID,
			ActorID:    event.actorID,
			Message:    output.BodyText,
		}),
	}, event.actorID)
}

// actorName resolves the display name used in rendered copy. Lookup failures
// fall back to the raw actor id.
func (o *Orchestrator) actorName(ctx context.Context, actorID string) string {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" || o.directory == nil {
		return ""
	}
	user, err := o.directory.GetUser(ctx, actorID)
	if err != nil {
		o.log("realtime: resolve actor=%q failed: %v", actorID, err)
		return actorID
	}
	if name := strings.TrimSpace(user.DisplayName); name != "" {
		return name
	}
	return actorID
}

// recipientLocale resolves the recipient's preferred locale, defaulting to
// en-US when the directory cannot answer.
func (o *Orchestrator) recipientLocale(ctx context.Context, userID string) string {
	if o.directory == nil {
		return defaultLocale
	}
	user, err := o.directory.GetUser(ctx, userID)
	if err != nil {
		return defaultLocale
	}
	if locale := strings.TrimSpace(user.Locale); locale != "" {
		return locale
	}
	return defaultLocale
}

func (o *Orchestrator) log(format string, args ...any) {
	if o.logf == nil {
		return
	}
	o.logf(format, args...)
}

// recipientSet is the union of project owner, team members, task assignees,
// and extra candidates, minus the actor, sorted for determinism.
func recipientSet(project directory.Project, assigneeIDs []string, extras []string, actorID string) []string {
	actorID = strings.TrimSpace(actorID)
	set := make(map[string]struct{})
	add := func(userID string) {
		userID = strings.TrimSpace(userID)
		if userID == "" || userID == actorID {
			return
		}
		set[userID] = struct{}{}
	}

	add(project.OwnerID)
	for _, memberID := range project.TeamMemberIDs {
		add(memberID)
	}
	for _, assigneeID := range assigneeIDs {
		add(assigneeID)
	}
	for _, extra := range extras {
		add(extra)
	}

	recipients := make([]string, 0, len(set))
	for userID := range set {
		recipients = append(recipients, userID)
	}
	sort.Strings(recipients)
	return recipients
}

// isTerminalStatus reports whether a status transition reached a completed
// terminal state.
func isTerminalStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "done":
		return true
	}
	return false
}
