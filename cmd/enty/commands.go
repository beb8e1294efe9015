package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sevewell/enty/internal/domain"
	"github.com/urfave/cli/v3"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}
}

func asOfFlag() cli.Flag {
	return &cli.StringFlag{Name: "as-of", Usage: "view date YYYY-MM-DD (default today)"}
}

// runOp loads the active profile, invokes op and prints the result as a
// table or, with --json, as JSON.
func runOp[T any](ctx context.Context, c *cli.Command, op operation, params map[string]any, render func(T)) error {
	cfg, err := loadProfile(c.String("profile"))
	if err != nil {
		return err
	}
	params = applyDefaultAsOf(c, cfg, params)
	var out T
	if err := invoke(ctx, cfg, op, params, &out); err != nil {
		return err
	}
	if c.Bool("json") || render == nil {
		return printJSON(out)
	}
	render(out)
	return nil
}

// applyDefaultAsOf fills as_of from the profile for commands that accept
// --as-of but were run without it.
func applyDefaultAsOf(c *cli.Command, cfg profile, params map[string]any) map[string]any {
	if cfg.AsOf == "" || !hasFlag(c, "as-of") || c.IsSet("as-of") {
		return params
	}
	if params == nil {
		params = map[string]any{}
	}
	params["as_of"] = cfg.AsOf
	return params
}

func hasFlag(c *cli.Command, name string) bool {
	for _, f := range c.Flags {
		for _, n := range f.Names() {
			if n == name {
				return true
			}
		}
	}
	return false
}

func printOK(msg string) func(map[string]any) {
	return func(map[string]any) { fmt.Println(msg) }
}

func setUint(params map[string]any, c *cli.Command, flag, key string) {
	if c.IsSet(flag) {
		params[key] = c.Uint(flag)
	}
}

func setString(params map[string]any, c *cli.Command, flag, key string) {
	if v := strings.TrimSpace(c.String(flag)); v != "" {
		params[key] = v
	}
}

// parseValues reads repeated ATTR_ID=VALUE flags.
func parseValues(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, item := range raw {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("value %q must be ATTR_ID=VALUE", item)
		}
		if _, err := strconv.ParseUint(strings.TrimSpace(k), 10, 64); err != nil {
			return nil, fmt.Errorf("value %q: attribute id must be a number", item)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Usage: "uds or http (default from profile)"},
					&cli.StringFlag{Name: "server", Usage: "server URL for http transport"},
					&cli.StringFlag{Name: "socket", Usage: "unix socket path for uds transport"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					name := c.String("profile")
					cfg, err := loadProfile(name)
					if err != nil {
						return err
					}
					if c.IsSet("transport") {
						cfg.Transport = c.String("transport")
					}
					if c.IsSet("server") {
						cfg.Server = c.String("server")
					}
					if c.IsSet("socket") {
						cfg.Socket = c.String("socket")
					}
					cfg.Token = ""
					if err := cfg.validate(); err != nil {
						return err
					}
					var out struct {
						Token string `json:"token"`
						Email string `json:"email"`
					}
					err = invoke(ctx, cfg, opLogin, map[string]any{
						"email":      c.String("email"),
						"password":   c.String("password"),
						"mode":       "token",
						"token_name": c.String("token-name"),
					}, &out)
					if err != nil {
						return err
					}
					cfg.Token, cfg.Email = out.Token, out.Email
					if err := saveProfile(name, cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show current authenticated user",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOp(ctx, c, opWhoAmI, nil, func(out struct {
						ID          uint     `json:"id"`
						Email       string   `json:"email"`
						Permissions []string `json:"permissions"`
					}) {
						printKV([][2]string{
							{"id", uintToString(out.ID)},
							{"email", out.Email},
							{"permissions", strings.Join(out.Permissions, ",")},
						})
					})
				},
			},
			{
				Name:  "logout",
				Usage: "Forget the token stored in the profile",
				Action: func(ctx context.Context, c *cli.Command) error {
					name := c.String("profile")
					cfg, err := loadProfile(name)
					if err != nil {
						return err
					}
					if cfg.Transport == "http" && cfg.Token != "" {
						_ = newAPIClient(cfg.Server, cfg.Token).request(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
					}
					cfg.Token, cfg.Email = "", ""
					if err := saveProfile(name, cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Entity, attribute and relation classes",
		Commands: []*cli.Command{
			{
				Name:  "settings",
				Usage: "Show linkage mode and temporal scoping",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOp(ctx, c, opSettings, nil, func(out map[string]any) {
						printKV([][2]string{
							{"linkage_mode", fmt.Sprint(out["linkage_mode"])},
							{"temporal_scoping", fmt.Sprint(out["temporal_scoping"])},
							{"today", fmt.Sprint(out["today"])},
						})
					})
				},
			},
			{
				Name:  "classes",
				Usage: "Entity classes",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Flags: []cli.Flag{jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opEntityClassList, nil, printEntityClasses)
						},
					},
					{
						Name:  "create",
						Flags: []cli.Flag{&cli.StringFlag{Name: "title", Required: true}, jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opEntityClassCreate, map[string]any{"title": c.String("title")}, func(v domain.EntityClass) {
								printEntityClasses([]domain.EntityClass{v})
							})
						},
					},
					{
						Name:  "rename",
						Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, &cli.StringFlag{Name: "title", Required: true}, jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opEntityClassUpdate, map[string]any{"id": c.Uint("id"), "title": c.String("title")}, func(v domain.EntityClass) {
								printEntityClasses([]domain.EntityClass{v})
							})
						},
					},
					{
						Name:  "delete",
						Usage: "Delete a class with its attributes, relation classes and instances",
						Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opEntityClassDelete, map[string]any{"id": c.Uint("id")}, printOK("deleted"))
						},
					},
				},
			},
			{
				Name:  "attributes",
				Usage: "Attribute classes of an entity class",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Flags: []cli.Flag{&cli.UintFlag{Name: "class", Required: true}, jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opAttributeClassList, map[string]any{"entity_class_id": c.Uint("class")}, printAttributeClasses)
						},
					},
					{
						Name: "create",
						Flags: []cli.Flag{
							&cli.UintFlag{Name: "class", Required: true},
							&cli.StringFlag{Name: "title", Required: true},
							&cli.StringFlag{Name: "type", Required: true, Usage: "data type, ENTITY for references"},
							&cli.IntFlag{Name: "order", Usage: "display position 1-999"},
							jsonFlag(),
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opAttributeClassCreate, attributeParams(c), func(v domain.AttributeClass) {
								printAttributeClasses([]domain.AttributeClass{v})
							})
						},
					},
					{
						Name: "update",
						Flags: []cli.Flag{
							&cli.UintFlag{Name: "class", Required: true},
							&cli.UintFlag{Name: "id", Required: true},
							&cli.StringFlag{Name: "title", Required: true},
							&cli.StringFlag{Name: "type", Required: true},
							&cli.IntFlag{Name: "order"},
							jsonFlag(),
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							params := attributeParams(c)
							params["id"] = c.Uint("id")
							return runOp(ctx, c, opAttributeClassUpdate, params, func(v domain.AttributeClass) {
								printAttributeClasses([]domain.AttributeClass{v})
							})
						},
					},
					{
						Name:  "delete",
						Flags: []cli.Flag{&cli.UintFlag{Name: "class", Required: true}, &cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opAttributeClassDelete, map[string]any{"entity_class_id": c.Uint("class"), "id": c.Uint("id")}, printOK("deleted"))
						},
					},
				},
			},
			{
				Name:  "relation-classes",
				Usage: "Relation classes between entity classes",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Flags: []cli.Flag{&cli.UintFlag{Name: "class", Usage: "only classes touching this entity class"}, jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							params := map[string]any{}
							setUint(params, c, "class", "entity_class_id")
							return runOp(ctx, c, opRelationClassList, params, printRelationClasses)
						},
					},
					{
						Name: "create",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "title", Required: true},
							&cli.UintFlag{Name: "from", Required: true, Usage: "from entity class id"},
							&cli.UintFlag{Name: "to", Required: true, Usage: "to entity class id"},
							jsonFlag(),
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opRelationClassCreate, relationClassParams(c), func(v domain.RelationClass) {
								printRelationClasses([]domain.RelationClass{v})
							})
						},
					},
					{
						Name: "update",
						Flags: []cli.Flag{
							&cli.UintFlag{Name: "id", Required: true},
							&cli.StringFlag{Name: "title", Required: true},
							&cli.UintFlag{Name: "from", Required: true},
							&cli.UintFlag{Name: "to", Required: true},
							jsonFlag(),
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							params := relationClassParams(c)
							params["id"] = c.Uint("id")
							return runOp(ctx, c, opRelationClassUpdate, params, func(v domain.RelationClass) {
								printRelationClasses([]domain.RelationClass{v})
							})
						},
					},
					{
						Name:  "delete",
						Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opRelationClassDelete, map[string]any{"id": c.Uint("id")}, printOK("deleted"))
						},
					},
				},
			},
		},
	}
}

func attributeParams(c *cli.Command) map[string]any {
	params := map[string]any{
		"entity_class_id": c.Uint("class"),
		"title":           c.String("title"),
		"data_type":       c.String("type"),
	}
	if c.IsSet("order") {
		params["order_display"] = c.Int("order")
	}
	return params
}

func relationClassParams(c *cli.Command) map[string]any {
	return map[string]any{
		"title":                c.String("title"),
		"from_entity_class_id": c.Uint("from"),
		"to_entity_class_id":   c.Uint("to"),
	}
}

func entityWriteFlags(extra ...cli.Flag) []cli.Flag {
	return append(extra,
		&cli.StringFlag{Name: "title", Required: true},
		&cli.StringFlag{Name: "date-in", Usage: "first day of existence YYYY-MM-DD"},
		&cli.StringFlag{Name: "date-out", Usage: "first day of non-existence YYYY-MM-DD"},
		&cli.StringSliceFlag{Name: "value", Usage: "ATTR_ID=VALUE, repeatable"},
		&cli.StringFlag{Name: "date-event", Usage: "event date for the recorded values"},
		jsonFlag(),
	)
}

func entityWriteParams(c *cli.Command) (map[string]any, error) {
	params := map[string]any{"title": c.String("title")}
	setString(params, c, "date-in", "date_in")
	setString(params, c, "date-out", "date_out")
	setString(params, c, "date-event", "date_event")
	if c.Bool("clear-date-in") {
		params["clear_date_in"] = true
	}
	if c.Bool("clear-date-out") {
		params["clear_date_out"] = true
	}
	if raw := c.StringSlice("value"); len(raw) > 0 {
		values, err := parseValues(raw)
		if err != nil {
			return nil, err
		}
		params["values"] = values
	}
	return params, nil
}

func entitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "entities",
		Usage: "Entity instances",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List instances existing on the view date",
				Flags: []cli.Flag{&cli.UintFlag{Name: "class"}, asOfFlag(), jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{}
					setUint(params, c, "class", "entity_class_id")
					setString(params, c, "as-of", "as_of")
					return runOp(ctx, c, opEntityList, params, printEntities)
				},
			},
			{
				Name:  "show",
				Usage: "Show an instance with its values and relations as of a date",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, asOfFlag(), jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{"id": c.Uint("id")}
					setString(params, c, "as-of", "as_of")
					return runOp(ctx, c, opEntityGet, params, printEntityDetail)
				},
			},
			{
				Name:  "create",
				Flags: entityWriteFlags(&cli.UintFlag{Name: "class", Required: true}),
				Action: func(ctx context.Context, c *cli.Command) error {
					params, err := entityWriteParams(c)
					if err != nil {
						return err
					}
					params["entity_class_id"] = c.Uint("class")
					return runOp(ctx, c, opEntityCreate, params, printSubmission)
				},
			},
			{
				Name:  "update",
				Usage: "Rename an instance, move its bounds and record values; omitted bounds are kept",
				Flags: entityWriteFlags(
					&cli.UintFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "clear-date-in", Usage: "make the start unbounded"},
					&cli.BoolFlag{Name: "clear-date-out", Usage: "make the end unbounded"},
				),
				Action: func(ctx context.Context, c *cli.Command) error {
					params, err := entityWriteParams(c)
					if err != nil {
						return err
					}
					params["id"] = c.Uint("id")
					return runOp(ctx, c, opEntityUpdate, params, printSubmission)
				},
			},
			{
				Name:  "delete",
				Usage: "Delete an instance with its facts and relations",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOp(ctx, c, opEntityDelete, map[string]any{"id": c.Uint("id")}, printOK("deleted"))
				},
			},
			{
				Name:  "values",
				Usage: "Attribute values effective on the view date",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, asOfFlag(), &cli.BoolFlag{Name: "latest", Usage: "latest recorded values, ignoring dates"}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{"id": c.Uint("id")}
					setString(params, c, "as-of", "as_of")
					if c.Bool("latest") {
						params["latest"] = true
					}
					return runOp(ctx, c, opEntityValues, params, printAttributeValues)
				},
			},
			{
				Name:  "links",
				Usage: "References leaving the instance on the view date",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, asOfFlag(), jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{"id": c.Uint("id")}
					setString(params, c, "as-of", "as_of")
					return runOp(ctx, c, opEntityLinks, params, printLinks)
				},
			},
			{
				Name:  "relations",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, &cli.StringFlag{Name: "direction", Value: "out", Usage: "out or in"}, asOfFlag(), jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{"id": c.Uint("id"), "direction": c.String("direction")}
					setString(params, c, "as-of", "as_of")
					return runOp(ctx, c, opEntityRelations, params, printRelationEdges)
				},
			},
		},
	}
}

func factsCommand() *cli.Command {
	return &cli.Command{
		Name:  "facts",
		Usage: "Attribute fact log",
		Commands: []*cli.Command{
			{
				Name:  "record",
				Usage: "Append a value for an attribute",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "entity", Required: true},
					&cli.UintFlag{Name: "attribute", Required: true},
					&cli.StringFlag{Name: "value", Required: true},
					&cli.StringFlag{Name: "date-event"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{"entity_id": c.Uint("entity"), "attribute_class_id": c.Uint("attribute"), "value": c.String("value")}
					setString(params, c, "date-event", "date_event")
					return runOp(ctx, c, opFactRecord, params, func(f domain.Fact) { printFacts([]domain.Fact{f}) })
				},
			},
			{
				Name:  "record-many",
				Usage: "Append several values at once, skipping invalid ones",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "entity", Required: true},
					&cli.StringSliceFlag{Name: "value", Required: true, Usage: "ATTR_ID=VALUE, repeatable"},
					&cli.StringFlag{Name: "date-event"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					values, err := parseValues(c.StringSlice("value"))
					if err != nil {
						return err
					}
					params := map[string]any{"entity_id": c.Uint("entity"), "values": values}
					setString(params, c, "date-event", "date_event")
					return runOp(ctx, c, opFactBatch, params, printSubmission)
				},
			},
			{
				Name:  "value",
				Usage: "Value of one attribute as of a date",
				Flags: []cli.Flag{&cli.UintFlag{Name: "entity", Required: true}, &cli.UintFlag{Name: "attribute", Required: true}, asOfFlag(), jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{"entity_id": c.Uint("entity"), "attribute_class_id": c.Uint("attribute")}
					setString(params, c, "as-of", "as_of")
					return runOp(ctx, c, opFactValue, params, func(out struct {
						AsOf  domain.Date `json:"as_of"`
						Found bool        `json:"found"`
						Fact  domain.Fact `json:"fact"`
					}) {
						if !out.Found {
							fmt.Printf("no value as of %s\n", out.AsOf)
							return
						}
						printFacts([]domain.Fact{out.Fact})
					})
				},
			},
			{
				Name:  "history",
				Usage: "Every recorded value of one attribute in recording order",
				Flags: []cli.Flag{&cli.UintFlag{Name: "entity", Required: true}, &cli.UintFlag{Name: "attribute", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOp(ctx, c, opFactHistory, map[string]any{"entity_id": c.Uint("entity"), "attribute_class_id": c.Uint("attribute")}, printFacts)
				},
			},
			{
				Name:  "correct",
				Usage: "Rewrite a recorded fact in place (administrators)",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, &cli.StringFlag{Name: "value", Required: true}, &cli.StringFlag{Name: "date-event"}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{"id": c.Uint("id"), "value": c.String("value")}
					setString(params, c, "date-event", "date_event")
					return runOp(ctx, c, opFactCorrect, params, func(f domain.Fact) { printFacts([]domain.Fact{f}) })
				},
			},
		},
	}
}

func relationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "relations",
		Usage: "Relation instances",
		Commands: []*cli.Command{
			{
				Name: "connect",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "class", Required: true, Usage: "relation class id"},
					&cli.UintFlag{Name: "from", Required: true},
					&cli.UintFlag{Name: "to", Required: true},
					&cli.StringFlag{Name: "date-event"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{"relation_class_id": c.Uint("class"), "from_entity_id": c.Uint("from"), "to_entity_id": c.Uint("to")}
					setString(params, c, "date-event", "date_event")
					return runOp(ctx, c, opRelationConnect, params, func(e domain.RelationEdge) { printRelationEdges([]domain.RelationEdge{e}) })
				},
			},
			{
				Name:  "show",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOp(ctx, c, opRelationGet, map[string]any{"id": c.Uint("id")}, func(e domain.RelationEdge) { printRelationEdges([]domain.RelationEdge{e}) })
				},
			},
			{
				Name:  "disconnect",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOp(ctx, c, opRelationDisconnect, map[string]any{"id": c.Uint("id")}, printOK("disconnected"))
				},
			},
		},
	}
}

func accessCommand() *cli.Command {
	return &cli.Command{
		Name:  "access",
		Usage: "Users and roles",
		Commands: []*cli.Command{
			{
				Name:  "users",
				Usage: "User management",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Flags: []cli.Flag{&cli.StringFlag{Name: "q"}, jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							params := map[string]any{}
							setString(params, c, "q", "q")
							return runOp(ctx, c, opUsersList, params, printUsers)
						},
					},
					{
						Name: "create",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "email", Required: true},
							&cli.StringFlag{Name: "password", Required: true},
							&cli.UintFlag{Name: "role-id"},
							jsonFlag(),
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							params := map[string]any{"email": c.String("email"), "password": c.String("password")}
							setUint(params, c, "role-id", "role_id")
							return runOp(ctx, c, opUsersCreate, params, func(u domain.User) { printUsers([]domain.User{u}) })
						},
					},
				},
			},
			{
				Name: "roles",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Flags: []cli.Flag{jsonFlag()},
						Action: func(ctx context.Context, c *cli.Command) error {
							return runOp(ctx, c, opRolesList, nil, printRoles)
						},
					},
				},
			},
			{
				Name:  "assign-role",
				Flags: []cli.Flag{&cli.UintFlag{Name: "user-id", Required: true}, &cli.UintFlag{Name: "role-id", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					params := map[string]any{"user_id": c.Uint("user-id"), "role_id": c.Uint("role-id")}
					return runOp(ctx, c, opAssignRole, params, printOK(fmt.Sprintf("assigned role %d to user %d", c.Uint("role-id"), c.Uint("user-id"))))
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log",
		Commands: []*cli.Command{
			{
				Name:  "logs",
				Flags: []cli.Flag{&cli.IntFlag{Name: "limit", Value: 100}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOp(ctx, c, opAuditLogs, map[string]any{"limit": c.Int("limit")}, printAuditRecords)
				},
			},
		},
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Connection profiles stored in ~/.enty/profiles.json",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					store, err := readProfileStore()
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(store)
					}
					rows := make([][]string, 0, len(store.Profiles))
					for _, name := range profileNames(store) {
						p := store.Profiles[name].withDefaults()
						current := ""
						if name == store.Current {
							current = "*"
						}
						endpoint := p.Socket
						if p.Transport == "http" {
							endpoint = p.Server
						}
						rows = append(rows, []string{current, name, p.Transport, endpoint, p.Email, p.AsOf})
					}
					printTable([]string{"", "NAME", "TRANSPORT", "ENDPOINT", "EMAIL", "AS_OF"}, rows)
					return nil
				},
			},
			{
				Name:      "use",
				Usage:     "Make a profile current",
				ArgsUsage: "NAME",
				Action: func(ctx context.Context, c *cli.Command) error {
					name := strings.TrimSpace(c.Args().First())
					if name == "" {
						return fmt.Errorf("profile name is required")
					}
					if err := useProfile(name); err != nil {
						return err
					}
					fmt.Printf("using profile %s\n", name)
					return nil
				},
			},
			{
				Name:  "set",
				Usage: "Create or change a profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Usage: "uds or http"},
					&cli.StringFlag{Name: "server"},
					&cli.StringFlag{Name: "socket"},
					&cli.StringFlag{Name: "as-of", Usage: "default view date YYYY-MM-DD, empty to clear"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					name := c.String("profile")
					p, err := loadProfile(name)
					if err != nil {
						return err
					}
					if c.IsSet("transport") {
						p.Transport = c.String("transport")
					}
					if c.IsSet("server") {
						p.Server = c.String("server")
					}
					if c.IsSet("socket") {
						p.Socket = c.String("socket")
					}
					if c.IsSet("as-of") {
						p.AsOf = strings.TrimSpace(c.String("as-of"))
					}
					if err := saveProfile(name, p); err != nil {
						return err
					}
					fmt.Println("profile saved")
					return nil
				},
			},
		},
	}
}
