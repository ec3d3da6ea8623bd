package mcpserver

// LayoutContract describes the path conventions every vault tool follows.
const LayoutContract = `# Vault Layout

Each project owns one vault, addressed by its numeric ` + "`vault_id`" + `.

## Paths

- Paths are relative to the vault root and use forward slashes.
- A leading ` + "`/`" + ` is optional: ` + "`docs/a.md`" + ` and ` + "`/docs/a.md`" + ` are the same file.
- ` + "`..`" + ` segments are rejected. Nothing outside the vault is reachable.
- Tools that act on an entry refuse the vault root itself.

## Reserved folder

` + "`.attachments/`" + ` holds embedded assets. ` + "`save_attachment`" + ` returns a path
such as ` + "`.attachments/diagram.png`" + ` that can be linked from Markdown:

    ![diagram](.attachments/diagram.png)

## Naming

- ` + "`copy_item`" + ` never overwrites. When the name is taken the copy becomes
  ` + "`<name> <suffix>.<ext>`" + `, then ` + "`<name> <suffix> 2.<ext>`" + ` and so on.
- ` + "`move_item`" + ` never overwrites either; it fails when the name is taken.
- ` + "`rename_item`" + ` targets an exact path and may replace an existing file.

## Tree

` + "`scan_vault`" + ` lists folders first, hidden folders after visible ones, then
files, each group ordered case-insensitively. Files report their name
without extension, the extension, a coarse type and their size.
`
