package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	apiclient "github.com/Fallenproud/create.xyzdashboard/pkg/api/client"
)

const requestTimeout = 15 * time.Second

var errNotLoggedIn = errors.New("please login first using 'studio login'")

type cliApp struct {
	apiBase *string
	out     func() io.Writer
}

// session loads the CLI config and builds a client for it. When auth is true
// a stored token is required.
func (a *cliApp) session(auth bool) (*apiclient.Client, cliConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cliConfig{}, err
	}
	if base := strings.TrimSpace(*a.apiBase); base != "" {
		cfg.APIBaseURL = base
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if auth && token == "" {
		return nil, cfg, errNotLoggedIn
	}
	client, err := apiclient.New(cfg.APIBaseURL, apiclient.WithToken(token))
	if err != nil {
		return nil, cfg, err
	}
	return client, cfg, nil
}

func (a *cliApp) loginCmd() *cobra.Command {
	var email, password, demo, oauth, magicToken string
	var magicLink bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := a.session(false)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			var resp apiclient.LoginResponse
			switch {
			case demo != "":
				resp, err = client.LoginDemo(ctx, demo)
			case oauth != "":
				resp, err = client.LoginOAuth(ctx, oauth)
			case magicToken != "":
				resp, err = client.VerifyMagicLink(ctx, magicToken)
			case magicLink:
				if err := client.RequestMagicLink(ctx, email); err != nil {
					return err
				}
				fmt.Fprintln(a.out(), "magic link sent; rerun with --magic-token to finish signing in")
				return nil
			default:
				if strings.TrimSpace(email) == "" {
					return errors.New("--email is required")
				}
				if password == "" {
					if password, err = promptPassword(cmd.ErrOrStderr()); err != nil {
						return err
					}
				}
				resp, err = client.Login(ctx, email, password)
			}
			if err != nil {
				return err
			}
			if resp.Token == "" {
				return errors.New("server did not issue a token")
			}
			cfg.AccessToken = resp.Token
			cfg.UserEmail = resp.User.Email
			if err := saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(a.out(), "%s signed in as %s (%s)\n", successStyle.Render("✓"), resp.User.Name, resp.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&demo, "demo", "", "Sign in as a demo account (admin|user)")
	cmd.Flags().StringVar(&oauth, "oauth", "", "Sign in through a simulated OAuth provider")
	cmd.Flags().BoolVar(&magicLink, "magic-link", false, "Email a one-time sign-in link to --email")
	cmd.Flags().StringVar(&magicToken, "magic-token", "", "Finish signing in with a magic link token")
	return cmd
}

func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func (a *cliApp) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := a.session(false)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := client.Logout(ctx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render("server logout failed: "+err.Error()))
			}
			cfg.AccessToken = ""
			cfg.UserEmail = ""
			if err := saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintln(a.out(), "logged out")
			return nil
		},
	}
}

func (a *cliApp) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			s, err := client.Session(ctx)
			if err != nil {
				return err
			}
			if !s.Authenticated || s.User == nil {
				return errNotLoggedIn
			}
			fmt.Fprintf(a.out(), "%s <%s> %s\n", titleStyle.Render(s.User.Name), s.User.Email, mutedStyle.Render(s.User.Role))
			return nil
		},
	}
}

func (a *cliApp) projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "List, create and delete projects",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			projects, err := client.ListProjects(ctx)
			if err != nil {
				return err
			}
			printProjects(a.out(), projects)
			return nil
		},
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a draft project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			p, err := client.CreateProject(ctx, args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out(), "%s project created: %s (%s)\n", successStyle.Render("✓"), p.ID, p.Name)
			return nil
		},
	}
	create.Flags().StringVar(&description, "description", "", "Project description")

	del := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project with its files and deployments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := client.DeleteProject(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(a.out(), "project deleted")
			return nil
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}

func printProjects(w io.Writer, projects []domain.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no projects"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tUPDATED\tURL")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, statusLabel(p.Status), p.UpdatedAt.Local().Format(time.DateTime), p.DeploymentURL)
	}
	_ = tw.Flush()
}

func (a *cliApp) filesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "files",
		Aliases: []string{"file"},
		Short:   "Manage project files",
	}
	var name string
	add := &cobra.Command{
		Use:   "add <project-id> <path>",
		Short: "Upload a local text file into a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.session(true)
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			if name == "" {
				name = filepath.Base(args[1])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			uploaded, err := client.UploadFile(ctx, args[0], name, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out(), "%s %s (%s, %d chars)\n", successStyle.Render("✓"), uploaded.Path, uploaded.Type, uploaded.Size)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "File name in the project (defaults to the local base name)")
	cmd.AddCommand(add)
	return cmd
}

func (a *cliApp) deployCmd() *cobra.Command {
	var environment string
	var wait bool
	cmd := &cobra.Command{
		Use:   "deploy <project-id>",
		Short: "Start a simulated deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			d, err := client.CreateDeployment(ctx, args[0], environment)
			cancel()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out(), "deployment %s %s -> %s\n", d.ID, statusLabel(d.Status), d.URL)
			if !wait {
				return nil
			}
			waitCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			final, err := client.WaitForDeployment(waitCtx, d.ID, time.Second, func(d domain.Deployment) {
				if n := len(d.Logs); n > 0 {
					fmt.Fprintf(a.out(), "  %s %s\n", statusLabel(d.Status), mutedStyle.Render(d.Logs[n-1]))
				}
			})
			if err != nil {
				return err
			}
			if final.Status != domain.DeploymentStatusSuccess {
				return fmt.Errorf("deployment finished with status %s", final.Status)
			}
			fmt.Fprintf(a.out(), "%s live at %s\n", successStyle.Render("✓"), final.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&environment, "env", domain.EnvironmentProduction, "Target environment (development|staging|production)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the deployment finishes")
	return cmd
}

func (a *cliApp) exportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Download a project snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			export, err := client.ExportProject(ctx, args[0], format)
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = export.Filename
			}
			if err := os.WriteFile(path, export.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(a.out(), "%s wrote %s (%d bytes)\n", successStyle.Render("✓"), path, len(export.Data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Export format (json|zip)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (defaults to the server-provided name)")
	return cmd
}
