package api

import (
	"net/http"

	"github.com/hackgods/clinic-encounter-engine/internal/reference"
)

func listProceduresHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reference.Procedures())
	}
}

func listMaterialsHandler() http.HandlerFunc {
	return itemsHandler(reference.Materials)
}

func listExamsHandler() http.HandlerFunc {
	return itemsHandler(reference.Exams)
}

func listEquipmentHandler() http.HandlerFunc {
	return itemsHandler(reference.Equipment)
}

func listSpecialtiesHandler() http.HandlerFunc {
	return itemsHandler(reference.Specialties)
}

func itemsHandler(list func() []reference.Item) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, list())
	}
}
