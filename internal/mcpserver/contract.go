package mcpserver

// ReportFormatContract describes the JSON report and the resolution rules
// behind it, for LLM consumers reading scan output.
const ReportFormatContract = `# refscan Report Format

A scan walks the source root, extracts import and asset references with a
fixed rule table, resolves each one against the tree and writes a JSON report.

## Fields

` + "```" + `json
{
  "total_references": 42,          // every extracted reference
  "total_imports": 30,             // import references
  "total_asset_references": 12,    // asset references
  "missing_modules": 3,            // missing import references, duplicates included
  "missing_assets": 1,             // missing asset references, duplicates included
  "missing_files_detail": {        // normalized missing path -> referencing files
    "src/components/Missing": ["src/App.vue", "src/pages/Home.vue"]
  },
  "missing_assets_detail": {       // category -> missing asset paths
    "image": ["src/assets/images/logo.png"]
  },
  "unreadable_files": ["src/broken.vue"]   // only present when a read failed
}
` + "```" + `

Lists are sorted and de-duplicated; the counts are not.

## Resolution

1. ` + "`" + `@/` + "`" + ` is replaced by ` + "`" + `src/` + "`" + ` once, as a prefix.
2. Targets starting with ` + "`" + `./` + "`" + ` or ` + "`" + `../` + "`" + ` are joined with the
   directory of the referencing file.
3. Targets whose leading segment names an installed package (vue, element-plus,
   pinia, axios, ...) are never reported missing.
4. Imports of style sheets and images (.css, .scss, .png, .jpg, .svg, .gif) are
   left to the bundler and not checked as modules.
5. A target exists if the path itself, the path plus .js/.vue/.ts, or
   path/index plus .js/.vue/.ts exists.

## Asset categories

- ` + "`" + `image` + "`" + `: src/assets/images/
- ` + "`" + `style` + "`" + `: src/assets/styles/
- ` + "`" + `font` + "`" + `: src/assets/fonts/

## Tools

- ` + "`" + `scan_tree` + "`" + ` runs a new scan and returns this report.
- ` + "`" + `list_missing_modules` + "`" + ` and ` + "`" + `list_missing_assets` + "`" + ` read the latest scan.
- ` + "`" + `list_missing_references` + "`" + ` lists every missing reference with file, line and raw text.
- ` + "`" + `search_references` + "`" + ` matches an exact, case-sensitive substring of the target or raw text.
- ` + "`" + `find_importers` + "`" + ` takes a normalized target (` + "`" + `src/components/Missing` + "`" + `),
  not the raw import text.
`
