package schema

// Table names, grouped the way spec.md §3 groups the data model's core
// entities. Ordered the way the teacher's own Tables list is ordered
// (declaration order == creation order, since foreign keys only ever
// point backward in this list).
const (
	TableItems             = "Items"
	TableLabels            = "Labels"
	TableBranches          = "Branches"
	TableVersions          = "Versions"
	TableFlavors           = "Flavors"
	TableNodes             = "Nodes"
	TableInstances         = "Instances"
	TableFilePaths         = "FilePaths"
	TableFileStreams       = "FileStreams"
	TableTroveFiles        = "TroveFiles"
	TableTroveRefs         = "TroveRefs"
	TableDependencies      = "Dependencies"
	TableProvides          = "Provides"
	TableRequires          = "Requires"
	TableRoles             = "Roles"
	TablePermissions       = "Permissions"
	TableLatestCache       = "LatestCache"
	TableCheckTroveCache   = "CheckTroveCache"
	TableRoleInstanceCache = "RoleInstanceCache"
	TableLatestMirror      = "LatestMirror"
	TableCommitLock        = "CommitLock"
	TableDatabaseVersion   = "DatabaseVersion"
)

// Tables is the ordered list of every table name in the catalog —
// creation order for createSchema, and the order loadSchema's reflected
// catalog is diffed against. Mirrors the teacher's `ChaindataTables`
// ordered-name-list-plus-cfg-map shape.
var Tables = []string{
	TableItems,
	TableLabels,
	TableBranches,
	TableVersions,
	TableFlavors,
	TableNodes,
	TableInstances,
	TableFilePaths,
	TableFileStreams,
	TableTroveFiles,
	TableTroveRefs,
	TableDependencies,
	TableProvides,
	TableRequires,
	TableRoles,
	TablePermissions,
	TableLatestCache,
	TableCheckTroveCache,
	TableRoleInstanceCache,
	TableLatestMirror,
	TableCommitLock,
	TableDatabaseVersion,
}

// Catalog maps table name to its declarative definition.
var Catalog = map[string]Table{
	TableItems: {
		Name: TableItems,
		Columns: []Column{
			{Name: "itemId", Type: KeywordPrimaryKey},
			{Name: "item", Type: "TEXT", NotNull: true},
		},
		Indexes: []Index{{Name: "ItemsItemIdx", Columns: []string{"item"}, Unique: true}},
	},
	TableLabels: {
		Name: TableLabels,
		Columns: []Column{
			{Name: "labelId", Type: KeywordPrimaryKey},
			{Name: "label", Type: "TEXT", NotNull: true},
		},
		Indexes: []Index{{Name: "LabelsLabelIdx", Columns: []string{"label"}, Unique: true}},
	},
	TableBranches: {
		Name: TableBranches,
		Columns: []Column{
			{Name: "branchId", Type: KeywordPrimaryKey},
			{Name: "branch", Type: "TEXT", NotNull: true},
		},
		Indexes: []Index{{Name: "BranchesBranchIdx", Columns: []string{"branch"}, Unique: true}},
	},
	TableVersions: {
		Name: TableVersions,
		Columns: []Column{
			{Name: "versionId", Type: KeywordPrimaryKey},
			{Name: "version", Type: "TEXT", NotNull: true},
		},
		Indexes: []Index{{Name: "VersionsVersionIdx", Columns: []string{"version"}, Unique: true}},
	},
	TableFlavors: {
		Name: TableFlavors,
		Columns: []Column{
			{Name: "flavorId", Type: KeywordPrimaryKey},
			{Name: "flavor", Type: "TEXT", NotNull: true},
		},
		Indexes: []Index{{Name: "FlavorsFlavorIdx", Columns: []string{"flavor"}, Unique: true}},
	},
	TableNodes: {
		Name: TableNodes,
		Columns: []Column{
			{Name: "nodeId", Type: KeywordPrimaryKey},
			{Name: "itemId", Type: "INTEGER", NotNull: true},
			{Name: "branchId", Type: "INTEGER", NotNull: true},
			{Name: "versionId", Type: "INTEGER", NotNull: true},
			{Name: "finalTimestamp", Type: "REAL", NotNull: true},
		},
		ForeignKeys: []ForeignKey{
			{Column: "itemId", References: TableItems + "(itemId)"},
			{Column: "branchId", References: TableBranches + "(branchId)"},
			{Column: "versionId", References: TableVersions + "(versionId)"},
		},
		Indexes: []Index{
			{Name: "NodesItemVersionIdx", Columns: []string{"itemId", "versionId"}, Unique: true},
			{Name: "NodesItemBranchIdx", Columns: []string{"itemId", "branchId"}},
		},
	},
	TableInstances: {
		Name: TableInstances,
		Columns: []Column{
			{Name: "instanceId", Type: KeywordPrimaryKey},
			{Name: "itemId", Type: "INTEGER", NotNull: true},
			{Name: "versionId", Type: "INTEGER", NotNull: true},
			{Name: "flavorId", Type: "INTEGER", NotNull: true},
			{Name: "isPresent", Type: "INTEGER", NotNull: true, Default: "1"},
			{Name: "troveType", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "clonedFromId", Type: "INTEGER"},
			{Name: "changed", Type: KeywordChanged},
		},
		ForeignKeys: []ForeignKey{
			{Column: "itemId", References: TableItems + "(itemId)"},
			{Column: "versionId", References: TableVersions + "(versionId)"},
			{Column: "flavorId", References: TableFlavors + "(flavorId)"},
			{Column: "clonedFromId", References: TableVersions + "(versionId)"},
		},
		Indexes: []Index{
			{Name: "InstancesUniqueIdx", Columns: []string{"itemId", "versionId", "flavorId"}, Unique: true},
		},
		Triggers: []Trigger{{
			Name: "InstancesChangedTrigger",
			SQL: "CREATE TRIGGER IF NOT EXISTS InstancesChangedTrigger AFTER UPDATE ON " + TableInstances +
				" BEGIN UPDATE " + TableInstances + " SET changed = CURRENT_TIMESTAMP WHERE instanceId = NEW.instanceId; END;",
		}},
	},
	TableFilePaths: {
		Name: TableFilePaths,
		Columns: []Column{
			{Name: "filePathId", Type: KeywordPrimaryKey},
			{Name: "pathId", Type: "BINARY(16)", NotNull: true},
			{Name: "path", Type: KeywordPathType, NotNull: true},
		},
		Indexes: []Index{{Name: "FilePathsPathIdIdx", Columns: []string{"pathId", "path"}, Unique: true}},
	},
	TableFileStreams: {
		Name: TableFileStreams,
		Columns: []Column{
			{Name: "streamId", Type: KeywordPrimaryKey},
			{Name: "fileId", Type: "BINARY(20)", NotNull: true},
			{Name: "sha1", Type: "BINARY(20)"},
			{Name: "stream", Type: KeywordBlob},
		},
		Indexes: []Index{{Name: "FileStreamsFileIdIdx", Columns: []string{"fileId"}, Unique: true}},
	},
	TableTroveFiles: {
		Name: TableTroveFiles,
		Columns: []Column{
			{Name: "instanceId", Type: "INTEGER", NotNull: true},
			{Name: "streamId", Type: "INTEGER", NotNull: true},
			{Name: "versionId", Type: "INTEGER", NotNull: true},
			{Name: "filePathId", Type: "INTEGER", NotNull: true},
		},
		ForeignKeys: []ForeignKey{
			{Column: "instanceId", References: TableInstances + "(instanceId)", OnDelete: "CASCADE"},
			{Column: "streamId", References: TableFileStreams + "(streamId)"},
			{Column: "versionId", References: TableVersions + "(versionId)"},
			{Column: "filePathId", References: TableFilePaths + "(filePathId)"},
		},
		Indexes: []Index{
			{Name: "TroveFilesInstancePathIdx", Columns: []string{"instanceId", "filePathId"}, Unique: true},
		},
	},
	TableTroveRefs: {
		Name: TableTroveRefs,
		Columns: []Column{
			{Name: "parentInstanceId", Type: "INTEGER", NotNull: true},
			{Name: "childItemId", Type: "INTEGER", NotNull: true},
			{Name: "childVersionId", Type: "INTEGER", NotNull: true},
			{Name: "childFlavorId", Type: "INTEGER", NotNull: true},
			{Name: "byDefault", Type: "INTEGER", NotNull: true, Default: "1"},
			{Name: "strongRef", Type: "INTEGER", NotNull: true, Default: "1"},
		},
		ForeignKeys: []ForeignKey{
			{Column: "parentInstanceId", References: TableInstances + "(instanceId)", OnDelete: "CASCADE"},
			{Column: "childItemId", References: TableItems + "(itemId)"},
			{Column: "childVersionId", References: TableVersions + "(versionId)"},
			{Column: "childFlavorId", References: TableFlavors + "(flavorId)"},
		},
		Indexes: []Index{
			{Name: "TroveRefsParentIdx", Columns: []string{"parentInstanceId"}},
		},
	},
	TableDependencies: {
		Name: TableDependencies,
		Columns: []Column{
			{Name: "depId", Type: KeywordPrimaryKey},
			{Name: "class", Type: "TEXT", NotNull: true},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "flags", Type: "TEXT"},
		},
		Indexes: []Index{{Name: "DependenciesUniqueIdx", Columns: []string{"class", "name", "flags"}, Unique: true}},
	},
	TableProvides: {
		Name: TableProvides,
		Columns: []Column{
			{Name: "instanceId", Type: "INTEGER", NotNull: true},
			{Name: "depId", Type: "INTEGER", NotNull: true},
		},
		ForeignKeys: []ForeignKey{
			{Column: "instanceId", References: TableInstances + "(instanceId)", OnDelete: "CASCADE"},
			{Column: "depId", References: TableDependencies + "(depId)"},
		},
		Indexes: []Index{{Name: "ProvidesUniqueIdx", Columns: []string{"instanceId", "depId"}, Unique: true}},
	},
	TableRequires: {
		Name: TableRequires,
		Columns: []Column{
			{Name: "instanceId", Type: "INTEGER", NotNull: true},
			{Name: "depId", Type: "INTEGER", NotNull: true},
		},
		ForeignKeys: []ForeignKey{
			{Column: "instanceId", References: TableInstances + "(instanceId)", OnDelete: "CASCADE"},
			{Column: "depId", References: TableDependencies + "(depId)"},
		},
		Indexes: []Index{{Name: "RequiresUniqueIdx", Columns: []string{"instanceId", "depId"}, Unique: true}},
	},
	TableRoles: {
		Name: TableRoles,
		Columns: []Column{
			{Name: "roleId", Type: KeywordPrimaryKey},
			{Name: "role", Type: "TEXT", NotNull: true},
			{Name: "admin", Type: "INTEGER", NotNull: true, Default: "0"},
		},
		Indexes: []Index{{Name: "RolesRoleIdx", Columns: []string{"role"}, Unique: true}},
	},
	TablePermissions: {
		Name: TablePermissions,
		Columns: []Column{
			{Name: "permissionId", Type: KeywordPrimaryKey},
			{Name: "roleId", Type: "INTEGER", NotNull: true},
			{Name: "labelPattern", Type: "TEXT", NotNull: true},
			{Name: "itemPattern", Type: "TEXT", NotNull: true},
			{Name: "canWrite", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "canRemove", Type: "INTEGER", NotNull: true, Default: "0"},
		},
		ForeignKeys: []ForeignKey{{Column: "roleId", References: TableRoles + "(roleId)", OnDelete: "CASCADE"}},
	},
	TableLatestCache: {
		Name: TableLatestCache,
		Columns: []Column{
			{Name: "itemId", Type: "INTEGER", NotNull: true},
			{Name: "branchId", Type: "INTEGER", NotNull: true},
			{Name: "flavorId", Type: "INTEGER", NotNull: true},
			{Name: "versionId", Type: "INTEGER", NotNull: true},
			{Name: "latestType", Type: "INTEGER", NotNull: true},
		},
		ForeignKeys: []ForeignKey{
			{Column: "itemId", References: TableItems + "(itemId)"},
			{Column: "branchId", References: TableBranches + "(branchId)"},
			{Column: "flavorId", References: TableFlavors + "(flavorId)"},
			{Column: "versionId", References: TableVersions + "(versionId)"},
		},
		Indexes: []Index{
			{Name: "LatestCacheUniqueIdx", Columns: []string{"itemId", "branchId", "flavorId", "latestType"}, Unique: true},
		},
	},
	TableCheckTroveCache: {
		Name: TableCheckTroveCache,
		Columns: []Column{
			{Name: "patternItemId", Type: "INTEGER", NotNull: true},
			{Name: "itemId", Type: "INTEGER", NotNull: true},
		},
		ForeignKeys: []ForeignKey{
			{Column: "patternItemId", References: TableItems + "(itemId)"},
			{Column: "itemId", References: TableItems + "(itemId)"},
		},
		Indexes: []Index{{Name: "CheckTroveCacheUniqueIdx", Columns: []string{"patternItemId", "itemId"}, Unique: true}},
	},
	TableRoleInstanceCache: {
		Name: TableRoleInstanceCache,
		Columns: []Column{
			{Name: "roleId", Type: "INTEGER", NotNull: true},
			{Name: "instanceId", Type: "INTEGER", NotNull: true},
			{Name: "canWrite", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "canRemove", Type: "INTEGER", NotNull: true, Default: "0"},
		},
		ForeignKeys: []ForeignKey{
			{Column: "roleId", References: TableRoles + "(roleId)", OnDelete: "CASCADE"},
			{Column: "instanceId", References: TableInstances + "(instanceId)", OnDelete: "CASCADE"},
		},
		Indexes: []Index{{Name: "RoleInstanceCacheUniqueIdx", Columns: []string{"roleId", "instanceId"}, Unique: true}},
	},
	TableLatestMirror: {
		Name: TableLatestMirror,
		Columns: []Column{
			{Name: "mirrorId", Type: KeywordPrimaryKey},
			{Name: "lastMirrored", Type: "REAL", NotNull: true, Default: "0"},
		},
	},
	TableCommitLock: {
		Name: TableCommitLock,
		Columns: []Column{
			{Name: "lockId", Type: KeywordPrimaryKey},
			{Name: "held", Type: "INTEGER", NotNull: true, Default: "0"},
		},
	},
	TableDatabaseVersion: {
		Name: TableDatabaseVersion,
		Columns: []Column{
			{Name: "major", Type: "INTEGER", NotNull: true},
			{Name: "minor", Type: "INTEGER", NotNull: true},
		},
	},
}

func init() {
	for _, name := range Tables {
		if _, ok := Catalog[name]; !ok {
			panic("schema: table " + name + " listed but not defined in Catalog")
		}
	}
	for name := range Catalog {
		found := false
		for _, t := range Tables {
			if t == name {
				found = true
				break
			}
		}
		if !found {
			panic("schema: table " + name + " defined in Catalog but missing from Tables")
		}
	}
}
