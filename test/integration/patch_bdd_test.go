//go:build integration

package integration

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/domain"
	"github.com/hollowgate/launcherd/internal/patch"
)

var _ = Describe("Patch Engine", func() {
	var (
		installDir string
		server     *httptest.Server
		engine     *patch.Engine

		liveRel         string
		originalContent []byte
		patchedContent  []byte
		instruction     *domain.PatchInstruction
		requestCount    int
	)

	md5Hex := func(data []byte) string {
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:])
	}

	BeforeEach(func() {
		var err error
		installDir, err = os.MkdirTemp("", "launcherd-integration-*")
		Expect(err).NotTo(HaveOccurred())

		liveRel = filepath.Join("GenshinImpact_Data", "global-metadata.dat")
		originalContent = []byte("original metadata v1")
		patchedContent = []byte("patched metadata v1")

		err = os.MkdirAll(filepath.Join(installDir, "GenshinImpact_Data"), 0755)
		Expect(err).NotTo(HaveOccurred())
		err = os.WriteFile(filepath.Join(installDir, liveRel), originalContent, 0644)
		Expect(err).NotTo(HaveOccurred())

		requestCount = 0
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/files/metadata.bin" {
				requestCount++
				w.Write(patchedContent)
				return
			}
			http.NotFound(w, r)
		}))

		instruction = &domain.PatchInstruction{
			Patch:  true,
			Method: domain.MethodReplaceFiles,
			Patched: []domain.PatchFile{{
				Location: liveRel,
				MD5:      md5Hex(patchedContent),
				URL:      server.URL + "/files/metadata.bin",
			}},
		}

		logger := zap.NewNop()
		client := patch.NewClient(server.URL, logger)
		engine = patch.NewEngine(client, patch.NewTracker(), logger)
	})

	AfterEach(func() {
		server.Close()
		os.RemoveAll(installDir)
	})

	Describe("Apply followed by Restore", func() {
		Context("when the installation was never patched before", func() {
			It("should leave the installation exactly as it was", func() {
				applied, err := engine.Apply(context.Background(), instruction, installDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(applied).To(Equal([]string{liveRel}))

				live, err := os.ReadFile(filepath.Join(installDir, liveRel))
				Expect(err).NotTo(HaveOccurred())
				Expect(live).To(Equal(patchedContent))

				backup, err := os.ReadFile(filepath.Join(installDir, liveRel+".backup"))
				Expect(err).NotTo(HaveOccurred())
				Expect(backup).To(Equal(originalContent))

				message := engine.Restore(instruction, installDir, applied)
				Expect(message).To(ContainSubstring("restored 1"))

				live, err = os.ReadFile(filepath.Join(installDir, liveRel))
				Expect(err).NotTo(HaveOccurred())
				Expect(live).To(Equal(originalContent))

				_, err = os.Stat(filepath.Join(installDir, liveRel+".backup"))
				Expect(os.IsNotExist(err)).To(BeTrue())
			})
		})

		Context("when applying twice for two consecutive sessions", func() {
			It("should keep the first backup and still restore the original", func() {
				_, err := engine.Apply(context.Background(), instruction, installDir)
				Expect(err).NotTo(HaveOccurred())

				applied, err := engine.Apply(context.Background(), instruction, installDir)
				Expect(err).NotTo(HaveOccurred())

				backup, err := os.ReadFile(filepath.Join(installDir, liveRel+".backup"))
				Expect(err).NotTo(HaveOccurred())
				Expect(backup).To(Equal(originalContent))

				engine.Restore(instruction, installDir, applied)

				live, err := os.ReadFile(filepath.Join(installDir, liveRel))
				Expect(err).NotTo(HaveOccurred())
				Expect(live).To(Equal(originalContent))
			})
		})
	})

	Describe("Download cache", func() {
		Context("when the same patch is applied after a restore", func() {
			It("should reuse the cached download", func() {
				applied, err := engine.Apply(context.Background(), instruction, installDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(requestCount).To(Equal(1))

				engine.Restore(instruction, installDir, applied)

				_, err = engine.Apply(context.Background(), instruction, installDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(requestCount).To(Equal(1))
			})
		})
	})

	Describe("Restore after a crash", func() {
		Context("when no instruction survived the restart", func() {
			It("should rebuild the restore set from backup files on disk", func() {
				_, err := engine.Apply(context.Background(), instruction, installDir)
				Expect(err).NotTo(HaveOccurred())

				message := engine.Restore(nil, installDir, nil)
				Expect(message).To(ContainSubstring("restored 1"))

				live, err := os.ReadFile(filepath.Join(installDir, liveRel))
				Expect(err).NotTo(HaveOccurred())
				Expect(live).To(Equal(originalContent))
			})
		})
	})
})
