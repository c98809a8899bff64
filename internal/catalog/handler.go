package catalog

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mangashelf/pkg/models"
)

// Handler is the read-only HTTP surface over both collections.
type Handler struct {
	Manga *Store[models.Manga]
	Anime *Store[models.Anime]
}

func NewHandler(manga *Store[models.Manga], anime *Store[models.Anime]) *Handler {
	return &Handler{Manga: manga, Anime: anime}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/manga", h.listManga)
	rg.GET("/manga/:id", h.getManga)
	rg.GET("/anime", h.listAnime)
	rg.GET("/anime/:id", h.getAnime)
	rg.GET("/characters", h.characters)
}

func (h *Handler) listManga(c *gin.Context) {
	items := ListManga(h.Manga, c.DefaultQuery("sort", "alpha"), c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"total": len(items), "items": items})
}

func (h *Handler) listAnime(c *gin.Context) {
	items := ListAnime(h.Anime, c.DefaultQuery("sort", "alpha"), c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"total": len(items), "items": items})
}

func (h *Handler) getManga(c *gin.Context) {
	m, err := h.Manga.Get(c.Param("id"))
	if err != nil {
		writeGetError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) getAnime(c *gin.Context) {
	a, err := h.Anime.Get(c.Param("id"))
	if err != nil {
		writeGetError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) characters(c *gin.Context) {
	if c.DefaultQuery("type", "anime") != "anime" {
		// Manga records carry no characters.
		c.JSON(http.StatusOK, gin.H{"results": []CharacterHit{}})
		return
	}
	hits := SearchCharacters(h.Anime, c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"results": hits})
}

func writeGetError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
}
