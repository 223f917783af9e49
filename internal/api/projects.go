package api

import (
	"context"
	"net/http"
)

func (c *Client) CreateProject(ctx context.Context, form ProjectForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, "projects", form, &msg)
	return msg, err
}

// Projects lists the projects the user manages or belongs to.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	err := c.do(ctx, http.MethodGet, "projects", nil, &projects)
	return projects, err
}

// Project returns a project with its tasks.
func (c *Client) Project(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := c.do(ctx, http.MethodGet, pathf("projects/%s", projectID), nil, &p)
	return p, err
}

func (c *Client) UpdateProject(ctx context.Context, projectID string, form ProjectForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPut, pathf("projects/%s", projectID), form, &msg)
	return msg, err
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodDelete, pathf("projects/%s", projectID), nil, &msg)
	return msg, err
}

func (c *Client) CreateTask(ctx context.Context, projectID string, form TaskForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, pathf("projects/%s/tasks", projectID), form, &msg)
	return msg, err
}

func (c *Client) Task(ctx context.Context, projectID string, taskID string) (Task, error) {
	var task Task
	err := c.do(ctx, http.MethodGet, pathf("projects/%s/tasks/%s", projectID, taskID), nil, &task)
	return task, err
}

func (c *Client) UpdateTask(ctx context.Context, projectID string, taskID string, form TaskForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPut, pathf("projects/%s/tasks/%s", projectID, taskID), form, &msg)
	return msg, err
}

func (c *Client) UpdateTaskStatus(ctx context.Context, projectID string, taskID string, status TaskStatus) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, pathf("projects/%s/tasks/%s/status", projectID, taskID),
		map[string]TaskStatus{"status": status}, &msg)
	return msg, err
}

func (c *Client) DeleteTask(ctx context.Context, projectID string, taskID string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodDelete, pathf("projects/%s/tasks/%s", projectID, taskID), nil, &msg)
	return msg, err
}

// FindMemberByEmail looks up a user that can be added to the project team.
func (c *Client) FindMemberByEmail(ctx context.Context, projectID string, email string) (TeamMember, error) {
	var member TeamMember
	err := c.do(ctx, http.MethodPost, pathf("projects/%s/team/find", projectID),
		map[string]string{"email": email}, &member)
	return member, err
}

func (c *Client) AddMember(ctx context.Context, projectID string, userID string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, pathf("projects/%s/team", projectID),
		map[string]string{"id": userID}, &msg)
	return msg, err
}

func (c *Client) Team(ctx context.Context, projectID string) ([]TeamMember, error) {
	var team []TeamMember
	err := c.do(ctx, http.MethodGet, pathf("projects/%s/team", projectID), nil, &team)
	return team, err
}

func (c *Client) RemoveMember(ctx context.Context, projectID string, userID string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodDelete, pathf("projects/%s/team/%s", projectID, userID), nil, &msg)
	return msg, err
}

func (c *Client) CreateNote(ctx context.Context, projectID string, taskID string, form NoteForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, pathf("projects/%s/tasks/%s/notes", projectID, taskID), form, &msg)
	return msg, err
}

func (c *Client) Notes(ctx context.Context, projectID string, taskID string) ([]Note, error) {
	var notes []Note
	err := c.do(ctx, http.MethodGet, pathf("projects/%s/tasks/%s/notes", projectID, taskID), nil, &notes)
	return notes, err
}

func (c *Client) DeleteNote(ctx context.Context, projectID string, taskID string, noteID string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodDelete, pathf("projects/%s/tasks/%s/notes/%s", projectID, taskID, noteID), nil, &msg)
	return msg, err
}
