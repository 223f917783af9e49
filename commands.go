package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptask/uptask-client/internal/api"
	"github.com/uptask/uptask-client/internal/config"
	"gopkg.in/yaml.v3"
)

// app carries the state shared by the command tree.
type app struct {
	load   func(context.Context) (config.Config, error)
	output string
}

type message struct {
	Message string `json:"message" yaml:"message"`
}

type tokenState struct {
	State string `json:"state" yaml:"state"`
	Token string `json:"token" yaml:"token"`
}

// runFunc is the body of a command, run with a configured session.
type runFunc func(cmd *cobra.Command, s *session, args []string) error

func newRootCommand(load func(context.Context) (config.Config, error)) *cobra.Command {
	a := &app{load: load}

	root := &cobra.Command{
		Use:           "uptask",
		Short:         "Command line client for the UpTask project API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.output != "json" && a.output != "yaml" {
				return fmt.Errorf("unsupported output format %q: use json or yaml", a.output)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.output, "output", "o", "json", "Output format (json, yaml)")

	root.AddCommand(
		a.newLoginCommand(),
		a.newLogoutCommand(),
		a.newWhoamiCommand(),
		a.newProjectsCommand(),
		a.newTasksCommand(),
		a.newTeamCommand(),
		a.newNotesCommand(),
		a.newProfileCommand(),
		a.newCSRFCommand(),
	)

	return root
}

// run adapts fn to cobra, creating the session first and releasing it once
// the command has finished. When authenticate is set the configured user is
// logged in before fn runs.
func (a *app) run(authenticate bool, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := a.load(ctx)
		if err != nil {
			return fmt.Errorf("configuration load failed: %w", err)
		}

		s, err := configureSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.close(ctx); err != nil {
				log.Warn().Err(err).Msg("shutdown incomplete")
			}
		}()

		if authenticate {
			if err := s.login(ctx); err != nil {
				return err
			}
		}

		return fn(cmd, s, args)
	}
}

func (a *app) print(cmd *cobra.Command, v any) error {
	w := cmd.OutOrStdout()

	if a.output == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("yaml output failed: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json output failed: %w", err)
	}

	return nil
}

func (a *app) printMessage(cmd *cobra.Command, msg string, err error) error {
	if err != nil {
		return err
	}
	return a.print(cmd, message{Message: msg})
}

func (a *app) newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify the configured credentials",
		Args:  cobra.NoArgs,
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			return a.print(cmd, message{Message: "logged in as " + s.cfg.API.Email})
		}),
	}
}

func (a *app) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server",
		Args:  cobra.NoArgs,
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			if err := s.api.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			return a.print(cmd, message{Message: "logged out"})
		}),
	}
}

func (a *app) newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			user, err := s.api.User(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, user)
		}),
	}
}

func (a *app) newProjectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage projects",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			projects, err := s.api.Projects(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, projects)
		}),
	}

	get := &cobra.Command{
		Use:   "get PROJECT_ID",
		Short: "Show a project and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			project, err := s.api.Project(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, project)
		}),
	}

	var form api.ProjectForm
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			msg, err := s.api.CreateProject(cmd.Context(), form)
			return a.printMessage(cmd, msg, err)
		}),
	}
	create.Flags().StringVar(&form.ProjectName, "name", "", "Project name")
	create.Flags().StringVar(&form.ClientName, "client", "", "Client name")
	create.Flags().StringVar(&form.Description, "description", "", "Project description")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("client")

	del := &cobra.Command{
		Use:   "delete PROJECT_ID",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			msg, err := s.api.DeleteProject(cmd.Context(), args[0])
			return a.printMessage(cmd, msg, err)
		}),
	}

	cmd.AddCommand(list, get, create, del)

	return cmd
}

func (a *app) newTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the tasks of a project",
	}

	var form api.TaskForm
	create := &cobra.Command{
		Use:   "create PROJECT_ID",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			msg, err := s.api.CreateTask(cmd.Context(), args[0], form)
			return a.printMessage(cmd, msg, err)
		}),
	}
	create.Flags().StringVar(&form.Name, "name", "", "Task name")
	create.Flags().StringVar(&form.Description, "description", "", "Task description")
	_ = create.MarkFlagRequired("name")

	status := &cobra.Command{
		Use:   "status PROJECT_ID TASK_ID STATUS",
		Short: "Change the status of a task",
		Args: cobra.MatchAll(cobra.ExactArgs(3), func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(api.TaskStatuses, api.TaskStatus(args[2])) {
				return fmt.Errorf("unknown task status %q: expected one of %v", args[2], api.TaskStatuses)
			}
			return nil
		}),
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			msg, err := s.api.UpdateTaskStatus(cmd.Context(), args[0], args[1], api.TaskStatus(args[2]))
			return a.printMessage(cmd, msg, err)
		}),
	}

	del := &cobra.Command{
		Use:   "delete PROJECT_ID TASK_ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			msg, err := s.api.DeleteTask(cmd.Context(), args[0], args[1])
			return a.printMessage(cmd, msg, err)
		}),
	}

	cmd.AddCommand(create, status, del)

	return cmd
}

func (a *app) newTeamCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage the team of a project",
	}

	list := &cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "List team members",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			team, err := s.api.Team(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, team)
		}),
	}

	add := &cobra.Command{
		Use:   "add PROJECT_ID EMAIL",
		Short: "Find a user by email and add them to the team",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			ctx := cmd.Context()

			member, err := s.api.FindMemberByEmail(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("member lookup failed: %w", err)
			}

			msg, err := s.api.AddMember(ctx, args[0], member.ID)
			return a.printMessage(cmd, msg, err)
		}),
	}

	remove := &cobra.Command{
		Use:   "remove PROJECT_ID USER_ID",
		Short: "Remove a member from the team",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			msg, err := s.api.RemoveMember(cmd.Context(), args[0], args[1])
			return a.printMessage(cmd, msg, err)
		}),
	}

	cmd.AddCommand(list, add, remove)

	return cmd
}

func (a *app) newNotesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage task notes",
	}

	add := &cobra.Command{
		Use:   "add PROJECT_ID TASK_ID CONTENT",
		Short: "Add a note to a task",
		Args:  cobra.ExactArgs(3),
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			msg, err := s.api.CreateNote(cmd.Context(), args[0], args[1], api.NoteForm{Content: args[2]})
			return a.printMessage(cmd, msg, err)
		}),
	}

	cmd.AddCommand(add)

	return cmd
}

func (a *app) newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the authenticated user's profile",
	}

	var form api.ProfileForm
	update := &cobra.Command{
		Use:   "update",
		Short: "Update name and email",
		Args:  cobra.NoArgs,
		RunE: a.run(true, func(cmd *cobra.Command, s *session, args []string) error {
			msg, err := s.api.UpdateProfile(cmd.Context(), form)
			return a.printMessage(cmd, msg, err)
		}),
	}
	update.Flags().StringVar(&form.Name, "name", "", "Display name")
	update.Flags().StringVar(&form.Email, "email", "", "Email address")
	_ = update.MarkFlagRequired("name")
	_ = update.MarkFlagRequired("email")

	cmd.AddCommand(update)

	return cmd
}

func (a *app) newCSRFCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csrf",
		Short: "Inspect CSRF token handling",
	}

	token := &cobra.Command{
		Use:   "token",
		Short: "Fetch a CSRF token and show the cache state",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(cmd *cobra.Command, s *session, args []string) error {
			token, err := s.tokens.GetToken(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, tokenState{State: s.tokens.State().String(), Token: token})
		}),
	}

	cmd.AddCommand(token)

	return cmd
}
