package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/smkit/smkit/pkg/protocol"
	"github.com/smkit/smkit/pkg/stores"
	"github.com/smkit/smkit/pkg/telemetry"
)

func (e *Engine) projectsCommand(ctx context.Context, cmd protocol.ProjectsCommand) (interface{}, error) {
	if err := e.check(cmd); err != nil {
		return nil, err
	}

	switch c := cmd.(type) {
	case protocol.ProjectGetRequest:
		return e.getProject(ctx, c.ID)
	case protocol.ProjectCreateRequest:
		return e.createProject(ctx, c)
	case protocol.ProjectsListRequest:
		return e.listProjects(ctx, c.OrganizationID)
	case protocol.ProjectPutRequest:
		return e.updateProject(ctx, c)
	case protocol.ProjectsDeleteRequest:
		return e.deleteProjects(ctx, c.IDs)
	}
	return nil, NewInvalidRequestError(fmt.Sprintf("unsupported projects command %T", cmd), nil)
}

func projectResponse(p *stores.Project) *protocol.ProjectResponse {
	return &protocol.ProjectResponse{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		CreationDate:   p.CreatedAt,
		RevisionDate:   p.RevisionDate,
	}
}

func (e *Engine) loadProject(ctx context.Context, s *session, id uuid.UUID) (*stores.Project, error) {
	p, err := e.store.GetProject(ctx, id)
	if stores.IsNotFound(err) || (err == nil && p.OrganizationID != s.OrganizationID) {
		return nil, NewNotFoundError("Project", id.String())
	}
	if err != nil {
		return nil, NewInternalError("Failed to read project", err)
	}
	return p, nil
}

func (e *Engine) getProject(ctx context.Context, id uuid.UUID) (*protocol.ProjectResponse, error) {
	s, err := e.requireSession(ctx, nil)
	if err != nil {
		return nil, err
	}
	p, err := e.loadProject(ctx, s, id)
	if err != nil {
		return nil, err
	}
	return projectResponse(p), nil
}

func (e *Engine) createProject(ctx context.Context, req protocol.ProjectCreateRequest) (*protocol.ProjectResponse, error) {
	s, err := e.requireSession(ctx, &req.OrganizationID)
	if err != nil {
		return nil, err
	}

	now := e.tick()
	p := &stores.Project{
		ID:             uuid.New(),
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		CreatedAt:      now,
		RevisionDate:   now,
	}
	if err := e.store.CreateProject(ctx, p); err != nil {
		return nil, NewInternalError("Failed to create project", err)
	}

	e.publish(s, telemetry.AuditProjectCreated, p.ID.String(), "project created")
	return projectResponse(p), nil
}

func (e *Engine) listProjects(ctx context.Context, orgID uuid.UUID) (*protocol.ProjectsResponse, error) {
	if _, err := e.requireSession(ctx, &orgID); err != nil {
		return nil, err
	}
	projects, err := e.store.ListProjects(ctx, orgID)
	if err != nil {
		return nil, NewInternalError("Failed to list projects", err)
	}
	resp := &protocol.ProjectsResponse{Data: make([]protocol.ProjectResponse, 0, len(projects))}
	for _, p := range projects {
		resp.Data = append(resp.Data, *projectResponse(p))
	}
	return resp, nil
}

func (e *Engine) updateProject(ctx context.Context, req protocol.ProjectPutRequest) (*protocol.ProjectResponse, error) {
	s, err := e.requireSession(ctx, &req.OrganizationID)
	if err != nil {
		return nil, err
	}
	p, err := e.loadProject(ctx, s, req.ID)
	if err != nil {
		return nil, err
	}

	p.Name = req.Name
	p.RevisionDate = e.tick()
	if err := e.store.UpdateProject(ctx, p); err != nil {
		if stores.IsNotFound(err) {
			return nil, NewNotFoundError("Project", req.ID.String())
		}
		return nil, NewInternalError("Failed to update project", err)
	}

	e.publish(s, telemetry.AuditProjectUpdated, p.ID.String(), "project updated")
	return projectResponse(p), nil
}

func (e *Engine) deleteProjects(ctx context.Context, ids []uuid.UUID) (*protocol.ProjectsDeleteResponse, error) {
	s, err := e.requireSession(ctx, nil)
	if err != nil {
		return nil, err
	}

	resp := &protocol.ProjectsDeleteResponse{Data: make([]protocol.ProjectDeleteResponse, 0, len(ids))}
	for _, id := range ids {
		entry := protocol.ProjectDeleteResponse{ID: id}
		if err := e.deleteProject(ctx, s, id); err != nil {
			msg := err.Error()
			entry.Error = &msg
		} else {
			e.publish(s, telemetry.AuditProjectDeleted, id.String(), "project deleted")
		}
		resp.Data = append(resp.Data, entry)
	}
	return resp, nil
}

func (e *Engine) deleteProject(ctx context.Context, s *session, id uuid.UUID) error {
	if _, err := e.loadProject(ctx, s, id); err != nil {
		return err
	}
	if err := e.store.DeleteProject(ctx, id, e.tick()); err != nil {
		if stores.IsNotFound(err) {
			return NewNotFoundError("Project", id.String())
		}
		return NewInternalError("Failed to delete project", err)
	}
	return nil
}
