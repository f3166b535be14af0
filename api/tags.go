package api

import "net/http"

func (a *API) listEmotionTags(w http.ResponseWriter, r *http.Request) {
	type response struct {
		EmotionTags []EmotionTag `json:"emotion_tags"`
	}

	tags, err := a.DB.ListEmotionTags(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list emotion tags")
		return
	}
	if tags == nil {
		tags = []EmotionTag{}
	}

	a.respond(w, http.StatusOK, response{EmotionTags: tags})
}
