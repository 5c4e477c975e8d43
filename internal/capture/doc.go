// Package capture defines the data model, collaborator interfaces, and pure
// helpers (unit splitting, folder naming) shared by the batch screenshot engine.
package capture
