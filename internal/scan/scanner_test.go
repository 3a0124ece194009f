package scan_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/refscan/internal/extract"
	"github.com/starford/refscan/internal/report"
	"github.com/starford/refscan/internal/resolve"
	"github.com/starford/refscan/internal/scan"
	"github.com/starford/refscan/internal/storage"
	"github.com/starford/refscan/internal/testutil"
)

const appVue = `<template>
  <Header />
</template>
<script>
import Header from './Header'
import Missing from '@/components/Missing'
import { ElButton } from 'element-plus'
const logo = '@/assets/images/logo.png'
</script>
`

func scenarioTree() map[string]string {
	return map[string]string{
		"src/App.vue":    appVue,
		"src/Header.vue": "<template><header/></template>\n",
	}
}

func TestRun_Scenarios(t *testing.T) {
	_, store := testutil.TestTree(t, scenarioTree())
	out, err := testutil.NewScanner(t, store).Run(context.Background())
	require.NoError(t, err)

	rep := out.Report
	assert.Equal(t, 2, out.Files)
	assert.Equal(t, 4, rep.TotalReferences)
	assert.Equal(t, 3, rep.TotalImports)
	assert.Equal(t, 1, rep.TotalAssetReferences)

	// './Header' resolves through the implicit .vue extension.
	_, headerMissing := rep.MissingFilesDetail["src/Header"]
	assert.False(t, headerMissing)

	// '@/components/Missing' is reported exactly once.
	assert.Equal(t, 1, rep.MissingModules)
	assert.Equal(t, map[string][]string{"src/components/Missing": {"src/App.vue"}}, rep.MissingFilesDetail)

	// The missing logo is an image.
	assert.Equal(t, 1, rep.MissingAssets)
	assert.Equal(t, map[string][]string{"image": {"src/assets/images/logo.png"}}, rep.MissingAssetsDetail)

	// element-plus is never missing.
	for _, res := range out.Results {
		if res.Reference.Raw == "element-plus" {
			assert.Equal(t, resolve.StatusExternal, res.Status)
		}
	}
}

func TestRun_DuplicateImportersCountedButDeduplicated(t *testing.T) {
	files := scenarioTree()
	files["src/pages/Home.vue"] = "<script>\nimport M from '@/components/Missing'\nimport M2 from '../components/Missing'\n</script>\n"
	_, store := testutil.TestTree(t, files)

	out, err := testutil.NewScanner(t, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, out.Report.MissingModules)
	assert.Equal(t, []string{"src/App.vue", "src/pages/Home.vue"}, out.Report.MissingFilesDetail["src/components/Missing"])
}

func TestRun_ExistingAssetAndIndexFile(t *testing.T) {
	files := map[string]string{
		"src/main.js":                  "import App from './App'\nimport router from './router'\nimport '@/assets/styles/main.scss'\n",
		"src/App.vue":                  "<style>@import '@/assets/styles/main.scss';</style>\n",
		"src/router/index.js":          "const Home = { component: () => import('@/views/Home') }\n",
		"src/views/Home.vue":           "<img src=\"@/assets/images/bg.png\">\n",
		"src/assets/styles/main.scss":  "body { font-family: x; src: url(@/assets/fonts/a.woff2); }\n",
		"src/assets/images/bg.png":     "png",
		"src/assets/fonts/a.woff2":     "font",
		"node_modules/vue/index.js":    "import x from './nowhere'\n",
	}
	_, store := testutil.TestTree(t, files)

	out, err := testutil.NewScanner(t, store).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Report.HasMissing(), "unexpected missing: %+v %+v", out.Report.MissingFilesDetail, out.Report.MissingAssetsDetail)

	for _, res := range out.Results {
		assert.NotContains(t, res.Reference.Origin, "node_modules")
	}
}

func TestRun_Idempotent(t *testing.T) {
	_, store := testutil.TestTree(t, scenarioTree())
	s := testutil.NewScanner(t, store)

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	second, err := s.Run(context.Background())
	require.NoError(t, err)

	a, err := report.Marshal(first.Report)
	require.NoError(t, err)
	b, err := report.Marshal(second.Report)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_MissingSourceRootFails(t *testing.T) {
	_, store := testutil.TestTree(t, map[string]string{"README.md": "x"})
	_, err := testutil.NewScanner(t, store).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan: list source root")
}

type failingStore struct {
	storage.Provider
	fail string
}

func (f failingStore) Read(path string) ([]byte, error) {
	if path == f.fail {
		return nil, errors.New("permission denied")
	}
	return f.Provider.Read(path)
}

func TestRun_UnreadableFileSkipped(t *testing.T) {
	files := scenarioTree()
	files["src/Broken.vue"] = "import Gone from './Gone'\n"
	_, fsStore := testutil.TestTree(t, files)
	store := failingStore{Provider: fsStore, fail: "src/Broken.vue"}

	ext, err := extract.New(extract.DefaultRules())
	require.NoError(t, err)
	cls, err := resolve.NewClassifier(resolve.DefaultCategoryPatterns("src"))
	require.NoError(t, err)
	res := resolve.New(resolve.DefaultOptions(), store)

	out, err := scan.New(store, ext, res, cls, "src", scan.WithLogger(testutil.Logger()), scan.WithWorkers(2)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"src/Broken.vue"}, out.Report.UnreadableFiles)
	assert.Equal(t, 1, out.Report.MissingModules, "other files are still scanned")
}

func TestRun_CacheReusedAndInvalidated(t *testing.T) {
	root, store := testutil.TestTree(t, scenarioTree())
	db := testutil.TestDB(t)
	s := testutil.NewScanner(t, store, scan.WithCache(db))

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	n, err := db.FileCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Fix the missing import; the changed checksum forces re-extraction.
	testutil.WriteTree(t, root, map[string]string{
		"src/components/Missing.vue": "<template/>\n",
	})
	out, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Report.MissingModules, "stat cache must be purged between runs")

	// Deleted files are pruned from the cache.
	require.NoError(t, os.Remove(filepath.Join(root, "src", "Header.vue")))
	out, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Report.MissingModules)
	n, err = db.FileCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n, "App.vue and Missing.vue remain")
}

func TestRun_Cancelled(t *testing.T) {
	_, store := testutil.TestTree(t, scenarioTree())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testutil.NewScanner(t, store).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, scan.Checksum([]byte("a")), scan.Checksum([]byte("a")))
	assert.NotEqual(t, scan.Checksum([]byte("a")), scan.Checksum([]byte("b")))
	assert.Len(t, scan.Checksum(nil), 64)
}
