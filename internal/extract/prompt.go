package extract

import "github.com/claude/gymwhisper/internal/models"

const extractionPromptEN = `You are part of a workout tracking application.
You will only reply with CSV data values.
Extract the following data from the user's workout description in this format: workoutType,Reps,Weight
Write workoutType in PascalCase English. Include the unit with the weight (lbs or kg), or Bodyweight.
When the user describes several sets, separate them with a semicolon.
If a value is physiologically implausible, append ,NeedsReview to that set.

Example 1:
"Just did a set of benchpress, 9 reps with a plate on each side"
Reasoning: a plate is 45lbs and the bar is 45lbs, so 2 x 45lbs + 45lbs = 135lbs.
Output: BenchPress,9,135lbs

Example 2:
"6 reps of lateral raises with 20lbs dumbbells"
Reasoning: the weight is what the user holds in each hand.
Output: LateralRaise,6,20lbs

Example 3:
"squats, 5000 reps at 2000 pounds, then 9 pushups"
Output: Squats,5000,2000lbs,NeedsReview;PushUps,9,Bodyweight`

const extractionPromptFR = `Tu fais partie d'une application de suivi d'entraînement.
Réponds uniquement avec des valeurs CSV.
Extrais les données de la description d'entraînement de l'utilisateur dans ce format : workoutType,Reps,Weight
Écris workoutType en anglais, en PascalCase. Indique l'unité du poids (lbs ou kg), ou Bodyweight.
Si l'utilisateur décrit plusieurs séries, sépare-les par un point-virgule.
Si une valeur est physiologiquement invraisemblable, ajoute ,NeedsReview à cette série.

Exemple 1 :
"Je viens de faire du développé couché, 9 répétitions avec un disque de chaque côté"
Sortie : BenchPress,9,135lbs

Exemple 2 :
"squats, 5000 répétitions à 900 kilos, puis 9 pompes"
Sortie : Squats,5000,900kg,NeedsReview;PushUps,9,Bodyweight`

const summaryPromptEN = `You are part of a workout tracking application.
Each line below is one logged set: workoutType,Reps,Weight, optionally followed by NeedsReview and a date.
Write a short, encouraging summary of the workout in two or three sentences of plain text.
Mention total sets per exercise and the heaviest weight lifted. Do not use markdown.`

const summaryPromptFR = `Tu fais partie d'une application de suivi d'entraînement.
Chaque ligne ci-dessous est une série enregistrée : workoutType,Reps,Weight, éventuellement suivie de NeedsReview et d'une date.
Rédige un court résumé encourageant de la séance en deux ou trois phrases, en texte brut.
Mentionne le nombre de séries par exercice et la charge la plus lourde. N'utilise pas de markdown.`

func extractionPrompt(language string) string {
	if language == models.LanguageFrench {
		return extractionPromptFR
	}
	return extractionPromptEN
}

func summaryPrompt(language string) string {
	if language == models.LanguageFrench {
		return summaryPromptFR
	}
	return summaryPromptEN
}
