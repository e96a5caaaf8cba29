// Package directory stores the users that have signed in through an OAuth
// provider or a trusted header scheme.
//
// A user is keyed by (provider, provider_id); email is informational only
// because some providers never disclose it. Upsert is a single
// INSERT ... ON CONFLICT statement, so concurrent first logins for the same
// key always converge on one row.
//
//	dir := directory.NewSQLDirectory(db)
//	if err := dir.Migrate(ctx); err != nil { ... }
//	user, err := dir.Upsert(ctx, identity, directory.NewRolePolicy(cfg.AdminEmails))
//
// Roles are assigned when a user is created. An email added to the admin
// list later promotes that user on their next login; removing it never
// demotes, use SetRole for that. Either way the change is only visible once
// the user obtains a new session token.
package directory
